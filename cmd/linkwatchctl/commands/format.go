// Package commands implements the linkwatchctl CLI commands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	valueNever  = "never"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatInterfaces renders the interface table in the requested format.
func formatInterfaces(interfaces []interfaceView, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalJSON(interfaces)
	case formatTable:
		return formatInterfacesTable(interfaces)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatPairs renders the liveness pair table in the requested format.
func formatPairs(pairs []pairView, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalJSON(pairs)
	case formatTable:
		return formatPairsTable(pairs)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatEndpoint renders one endpoint status in the requested format.
func formatEndpoint(ep endpointView, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalJSON(ep)
	case formatTable:
		return formatEndpointDetail(ep)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatLoops renders the loop record table in the requested format.
func formatLoops(loops []loopView, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalJSON(loops)
	case formatTable:
		return formatLoopsTable(loops)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatInterfacesTable(interfaces []interfaceView) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDPID\tPORT\tLLDP\tACTIVE\tENABLED\tLIVENESS")

	for _, i := range interfaces {
		liveness := i.Liveness
		if liveness == "" {
			liveness = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\t%v\t%v\t%s\n",
			i.ID, i.Name, i.DPID, i.PortNumber, i.LLDP, i.Active, i.Enabled, liveness)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush table: %w", err)
	}
	return buf.String(), nil
}

func formatPairsTable(pairs []pairView) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTERFACE-A\tSTATE-A\tINTERFACE-B\tSTATE-B\tLINK")

	for _, p := range pairs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.A.ID, p.A.State, p.B.ID, p.B.State, p.State)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush table: %w", err)
	}
	return buf.String(), nil
}

func formatEndpointDetail(ep endpointView) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Interface:\t%s\n", ep.ID)
	fmt.Fprintf(w, "State:\t%s\n", ep.State)
	fmt.Fprintf(w, "Last hello:\t%s\n", formatHelloTime(ep.LastHelloAt))

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush table: %w", err)
	}
	return buf.String(), nil
}

func formatLoopsTable(loops []loopView) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DPID\tPORT-A\tPORT-B\tSTATE\tDETECTED\tUPDATED\tSTOPPED")

	for _, l := range loops {
		stopped := "-"
		if l.StoppedAt != nil {
			stopped = l.StoppedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			l.DPID, l.PortNumbers[0], l.PortNumbers[1], l.State,
			l.DetectedAt.Format(time.RFC3339),
			l.UpdatedAt.Format(time.RFC3339),
			stopped)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush table: %w", err)
	}
	return buf.String(), nil
}

func formatHelloTime(t *time.Time) string {
	if t == nil {
		return valueNever
	}
	return t.Format(time.RFC3339)
}

// --- JSON formatter ---

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(data) + "\n", nil
}
