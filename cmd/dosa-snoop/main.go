// dosa-snoop is a read-only packet sniffer: it joins the DOSA
// multicast group and pretty-prints every decoded frame, optionally
// filtered by opcode or source address.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/jordonsc/dosa-go/internal/frame"
	"github.com/jordonsc/dosa-go/internal/monitor"
	"github.com/jordonsc/dosa-go/internal/transport"
)

// receiveQuantum paces the receive loop so ctx cancellation is noticed
// promptly between frames.
const receiveQuantum = 100 * time.Millisecond

func main() {
	opcodeFilter := flag.StringP("opcode", "o", "", "only show frames with this opcode (e.g. trg)")
	sourceFilter := flag.StringP("source", "s", "", "only show frames from this source IP")
	renderMap := flag.BoolP("render-map", "m", false, "render 8x8 IR trigger payloads as ASCII")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t, err := transport.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer t.Close()

	fmt.Println("dosa-snoop listening on the DOSA multicast group, ctrl-c to stop")
	for ctx.Err() == nil {
		f, ok := t.Receive(receiveQuantum)
		if !ok {
			continue
		}
		if *opcodeFilter != "" && string(f.Opcode) != *opcodeFilter {
			continue
		}
		if *sourceFilter != "" && (f.Source == nil || f.Source.IP.String() != *sourceFilter) {
			continue
		}
		printFrame(f, *renderMap)
	}
}

func printFrame(f frame.Frame, renderMap bool) {
	source := "local"
	if f.Source != nil {
		source = f.Source.String()
	}

	fmt.Printf("%-15s %-3s %-20s % x\n", source, f.Opcode, f.DeviceName, f.Payload)
	if len(f.Payload) > 0 {
		fmt.Printf("  hex: %s  ascii: %q\n", hex.EncodeToString(f.Payload), asciiPreview(f.Payload))
	}
	if renderMap && f.Opcode == frame.OpTrigger {
		if subtype := monitor.ParseTriggerSubtype(f.Payload); subtype == monitor.TriggerMap {
			if rendered, ok := monitor.RenderMap(f.Payload); ok {
				fmt.Print(rendered)
			}
		}
	}
}

func asciiPreview(payload []byte) string {
	var b strings.Builder
	for _, c := range payload {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
