// dosa-net is the operator's network utility: scan for devices, push a
// config setting, trigger/flush/OTA a device, fire an alt-trigger
// code, or run a named play, all over the same multicast transport the
// agents use.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/jordonsc/dosa-go/internal/cfgproto"
	"github.com/jordonsc/dosa-go/internal/frame"
	"github.com/jordonsc/dosa-go/internal/monitor"
	"github.com/jordonsc/dosa-go/internal/transport"
)

const defaultDeviceName = "dosa-net"

func main() {
	var (
		configureTarget = flag.StringP("configure", "c", "", "push a config setting to the device at ip (an ip is required; bare -c is rejected)")
		pingTarget      = flag.StringP("ping", "p", "", "ping a single device and print its pong")
		triggerTarget   = flag.StringP("trigger", "t", "", "fire a trigger at a device (ip, or broadcast if omitted)")
		otaTarget       = flag.StringP("ota", "o", "", "send an OTA-update signal to a device (ip, or broadcast if omitted)")
		flushTarget     = flag.StringP("flush", "f", "", "flush a device's registry entry (ip, or broadcast if omitted)")
		altCode         = flag.Int("alt", -1, "fire an alt-trigger with the given numeric code")
		playName        = flag.String("play", "", "run a named play")

		renderMap    = flag.BoolP("render-map", "m", false, "render an 8x8 IR trigger payload as ASCII")
		noRetry      = flag.BoolP("no-retry", "i", false, "suppress scan retries")
		autoAck      = flag.BoolP("auto-ack", "a", false, "automatically ack every frame received in reply")
		suppressPing = flag.BoolP("quiet", "x", false, "suppress this tool's own pings while waiting for replies")

		kind  = flag.Int("kind", -1, "setting kind for -c (0=password,1=name,2=wifi,3=ir-cal,4=door-cal,5=sonar-cal)")
		value = flag.String("value", "", "raw setting value for -c")

		timeout = flag.Duration("timeout", 2*time.Second, "reply wait timeout")
	)

	// -c, -p, -t, -o, -f all parse an optional ip argument. Bare -t, -o
	// and -f broadcast to the multicast group, bare -p scans, and bare
	// -c is rejected by runConfigure.
	for _, name := range []string{"configure", "ping", "trigger", "ota", "flush"} {
		flag.Lookup(name).NoOptDefVal = ""
	}
	flag.Parse()

	modes := 0
	for _, set := range []bool{
		flag.CommandLine.Changed("configure"),
		flag.CommandLine.Changed("ping"),
		flag.CommandLine.Changed("trigger"),
		flag.CommandLine.Changed("ota"),
		flag.CommandLine.Changed("flush"),
		*altCode >= 0,
		*playName != "",
	} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -c, -p, -t, -o, -f, --alt, --play is required")
		os.Exit(2)
	}

	t, err := transport.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer t.Close()

	scanner := cfgproto.New(t, defaultDeviceName)
	retries := 2
	if *noRetry {
		retries = 0
	}

	switch {
	case flag.CommandLine.Changed("ping"):
		err = runPing(t, scanner, *pingTarget)
	case flag.CommandLine.Changed("configure"):
		err = runConfigure(scanner, *configureTarget, *kind, *value)
	case flag.CommandLine.Changed("trigger"):
		err = runSimpleOp(t, scanner, frame.OpTrigger, *triggerTarget, retries, *timeout, *autoAck, *suppressPing, *renderMap)
	case flag.CommandLine.Changed("ota"):
		err = runSimpleOp(t, scanner, frame.OpOTA, *otaTarget, retries, *timeout, *autoAck, *suppressPing, *renderMap)
	case flag.CommandLine.Changed("flush"):
		err = runSimpleOp(t, scanner, frame.OpFlush, *flushTarget, retries, *timeout, *autoAck, *suppressPing, *renderMap)
	case *altCode >= 0:
		err = runAlt(t, *altCode)
	case *playName != "":
		err = runPlay(t, *playName)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveTarget(ip string) (*net.UDPAddr, error) {
	if ip == "" {
		return nil, nil // nil target means "broadcast to the multicast group"
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return nil, fmt.Errorf("invalid IP address %q", ip)
	}
	return &net.UDPAddr{IP: addr, Port: 6901}, nil
}

func runPing(t *transport.Transport, scanner *cfgproto.Scanner, ip string) error {
	if ip == "" {
		results, err := scanner.Scan(2, 2*time.Second)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%-16s %-20s type=%-10s state=%s\n", r.Addr.IP, r.Name, r.Type, r.State)
		}
		return nil
	}

	target, err := resolveTarget(ip)
	if err != nil {
		return err
	}
	raw, err := frame.Encode(defaultDeviceName, frame.OpPing, nil)
	if err != nil {
		return err
	}
	if err := t.Send(raw, target); err != nil {
		return err
	}
	f, ok := t.Receive(2 * time.Second)
	if !ok {
		return fmt.Errorf("no reply from %s", ip)
	}
	fmt.Printf("%s replied %s\n", f.DeviceName, f.Opcode)
	return nil
}

func runConfigure(scanner *cfgproto.Scanner, ip string, kind int, value string) error {
	if ip == "" {
		return fmt.Errorf("-c requires a target ip")
	}
	if kind < 0 {
		return fmt.Errorf("-c requires --kind")
	}
	target, err := resolveTarget(ip)
	if err != nil {
		return err
	}
	acked, err := scanner.ApplySetting(*target, cfgproto.Kind(kind), []byte(value))
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("%s did not acknowledge the setting", ip)
	}
	fmt.Printf("%s acknowledged kind=%d\n", ip, kind)
	return nil
}

// runSimpleOp sends an opcode (trigger/OTA/flush) and waits for its
// ack, making at most retries+1 attempts (a missing ack only prints a
// warning), then listens for any follow-up frames the
// target emits in response. suppressPing skips this tool's own
// broadcast discovery ping, relying only on the explicit target.
func runSimpleOp(t *transport.Transport, scanner *cfgproto.Scanner, opcode frame.Opcode, ip string, retries int, timeout time.Duration, autoAck, suppressPing, renderMap bool) error {
	target, err := resolveTarget(ip)
	if err != nil {
		return err
	}
	if target == nil && !suppressPing {
		results, err := scanner.Scan(retries, timeout)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no devices discovered to broadcast %s to", opcode)
		}
	}

	raw, err := frame.Encode(defaultDeviceName, opcode, nil)
	if err != nil {
		return err
	}
	var msgID [2]byte
	copy(msgID[:], raw[0:2])

	attempts := retries + 1
	var acked bool
	for i := 0; i < attempts && !acked; i++ {
		acked, err = t.SendWithAck(raw, msgID, target, timeout)
		if err != nil {
			return err
		}
	}
	if !acked {
		fmt.Fprintf(os.Stderr, "warning: no ack received for %s\n", opcode)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f, ok := t.Receive(time.Until(deadline))
		if !ok {
			break
		}
		if f.Opcode == frame.OpAck {
			continue
		}
		printFrame(f, renderMap)
		if autoAck {
			_ = t.SendAck(defaultDeviceName, f.MsgID, f.Source)
		}
	}
	return nil
}

func runAlt(t *transport.Transport, code int) error {
	raw, err := frame.Encode(defaultDeviceName, frame.OpAlert, []byte{byte(code)})
	if err != nil {
		return err
	}
	return t.Send(raw, nil)
}

func runPlay(t *transport.Transport, name string) error {
	raw, err := frame.Encode(defaultDeviceName, frame.OpPlay, []byte(name))
	if err != nil {
		return err
	}
	return t.Send(raw, nil)
}

func printFrame(f frame.Frame, renderMap bool) {
	fmt.Printf("%s %s payload=%d bytes\n", f.DeviceName, f.Opcode, len(f.Payload))
	if renderMap && f.Opcode == frame.OpTrigger {
		if subtype := monitor.ParseTriggerSubtype(f.Payload); subtype == monitor.TriggerMap {
			if rendered, ok := monitor.RenderMap(f.Payload); ok {
				fmt.Print(rendered)
			}
		}
	}
}

