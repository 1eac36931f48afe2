// Command focus-watch is a manual client for the focusband snapshot stream.
// It prints every UiState snapshot and sends single-letter commands typed
// on stdin. Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/focus-watch [--addr 127.0.0.1:8080]
//
// Commands: c (toggle connection), s (start), x (stop), d (disconnect).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/chaz8081/focusband/internal/monitor"
	"github.com/chaz8081/focusband/internal/server"
)

var commands = map[string]string{
	"c": "toggle",
	"s": "start",
	"x": "stop",
	"d": "disconnect",
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "focusband server address")
	flag.Parse()

	url := "ws://" + *addr + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("Watching %s (c/s/x/d + Enter, Ctrl+C to exit)\n", url)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		conn.Close()
	}()

	// Send commands
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd, ok := commands[strings.TrimSpace(scanner.Text())]
			if !ok {
				fmt.Println("??? unknown key, use c/s/x/d")
				continue
			}
			if err := conn.WriteJSON(server.Request{Command: cmd}); err != nil {
				return
			}
		}
	}()

	// Blocks until the connection closes
	for {
		var raw map[string]any
		if err := conn.ReadJSON(&raw); err != nil {
			break
		}
		if msg, ok := raw["error"]; ok {
			fmt.Println("!!! error:", msg)
			continue
		}
		printSnapshot(raw)
	}
	fmt.Println("Done.")
}

func printSnapshot(raw map[string]any) {
	var st monitor.UiState
	st.FocusScore = int(number(raw["focus_score"]))
	st.IsMonitoring, _ = raw["is_monitoring"].(bool)
	st.HasBluetoothPermission, _ = raw["has_bluetooth_permission"].(bool)
	if name, ok := raw["ble_status"].(string); ok {
		_ = st.BleStatus.UnmarshalText([]byte(name))
	}
	fmt.Printf(">>> %-12s monitoring=%-5t score=%3d permission=%t\n",
		st.BleStatus, st.IsMonitoring, st.FocusScore, st.HasBluetoothPermission)
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}
