package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/homiewatch/internal/homie"
	"github.com/nerrad567/homiewatch/internal/infrastructure/config"
	"github.com/nerrad567/homiewatch/internal/infrastructure/logging"
	"github.com/nerrad567/homiewatch/internal/infrastructure/mqtt"
)

const defaultTreeWait = 3 * time.Second

var (
	readyColor   = color.New(color.FgGreen, color.Bold)
	waitingColor = color.New(color.FgYellow)
	faultColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

func newTreeCmd(opts *rootOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the devices discovered within a collection window",
		Long: `Connect to the broker, collect retained and live Homie messages for the
--wait duration, then print every discovered device with its nodes and
properties. Devices still missing required attributes are listed as pending.

Examples:
  homiewatch tree
  homiewatch tree --wait 10s --config /etc/homiewatch/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runTree(cmd.Context(), cfg, wait, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", defaultTreeWait, "how long to collect messages before printing")
	return cmd
}

func runTree(ctx context.Context, cfg *config.Config, wait time.Duration, out io.Writer) error {
	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	log := logging.New(logCfg, version)

	// A separate client id and status topic keep a running service's session
	// and online status untouched.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = fmt.Sprintf("%s-tree-%s", mqttCfg.Broker.ClientID, uuid.NewString()[:8])
	mqttCfg.StatusTopic = mqttCfg.StatusTopic + "/" + mqttCfg.Broker.ClientID

	tree := homie.NewClient(cfg.Homie.Prefix)
	tree.SetLogger(log)

	client, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer client.Close() //nolint:errcheck // Best-effort disconnect on exit
	client.SetLogger(log)

	topic := homie.SubscriptionTopic(tree.Prefix())
	if err := client.Subscribe(topic, client.QoS(), tree.Submit); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	printTree(out, tree.Devices(), tree.PendingDeviceIDs())
	return nil
}

// printTree writes devices with their nodes and properties, one per line,
// indented by level.
func printTree(out io.Writer, devices []*homie.Device, pending []string) {
	if len(devices) == 0 {
		fmt.Fprintln(out, dimColor.Sprint("no devices discovered"))
	}

	for _, d := range devices {
		fmt.Fprintf(out, "%s  %s  %s  %s\n",
			d.ID(), d.Name(), stateLabel(d), dimColor.Sprintf("homie %s", d.Convention()))
		for _, id := range d.PendingNodeIDs() {
			fmt.Fprintf(out, "  %s  %s\n", id, waitingColor.Sprint("(pending)"))
		}

		for _, n := range d.Nodes() {
			fmt.Fprintf(out, "  %s  %s (%s)\n", n.ID(), n.Name(), n.Type())
			for _, id := range n.PendingPropertyIDs() {
				fmt.Fprintf(out, "    %s  %s\n", id, waitingColor.Sprint("(pending)"))
			}
			for _, p := range n.Properties() {
				fmt.Fprintf(out, "    %s  %s = %s  %s\n", p.ID(), p.Name(), propertyValue(p), propertyTraits(p))
			}
		}
	}

	if len(pending) > 0 {
		fmt.Fprintf(out, "%s %s\n", waitingColor.Sprint("pending:"), strings.Join(pending, ", "))
	}
}

func stateLabel(d *homie.Device) string {
	label := "[" + d.State() + "]"
	switch {
	case d.IsReady():
		return readyColor.Sprint(label)
	case d.State() == homie.StateLost || d.State() == homie.StateAlert:
		return faultColor.Sprint(label)
	default:
		return waitingColor.Sprint(label)
	}
}

func propertyValue(p *homie.Property) string {
	raw, ok := p.Raw()
	if !ok {
		return dimColor.Sprint("-")
	}
	v, err := p.Snapshot()
	if err != nil {
		return faultColor.Sprintf("%q (invalid)", raw)
	}
	s := fmt.Sprint(v.Value)
	if v.Value == nil {
		s = raw
	}
	if v.Unit != nil && *v.Unit != "" {
		s += " " + *v.Unit
	}
	return s
}

func propertyTraits(p *homie.Property) string {
	traits := []string{p.Datatype()}
	if f := p.Format(); f != "" {
		traits = append(traits, "format="+f)
	}
	if p.Settable() {
		traits = append(traits, "settable")
	}
	return dimColor.Sprint(strings.Join(traits, " "))
}
