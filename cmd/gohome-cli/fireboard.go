package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"

	"github.com/joshp123/gohome-fireboard/internal/config"
	"github.com/joshp123/gohome-fireboard/plugins/fireboard"
)

func fireboardCmd(ctx context.Context, conn *grpc.ClientConn, args []string) {
	if len(args) == 0 {
		fireboardUsage()
		os.Exit(2)
	}

	flags := flag.NewFlagSet("fireboard", flag.ExitOnError)
	jsonOut := flags.Bool("json", false, "Output JSON")
	live := flags.Bool("live", false, "Bypass the polled snapshot")
	minTemp := flags.String("min", "", "Alert minimum temperature")
	maxTemp := flags.String("max", "", "Alert maximum temperature")
	enabled := flags.String("enabled", "", "Enable or disable an alert (true/false)")
	limit := flags.Int("limit", fireboard.DefaultSessionLimit, "Sessions to list")
	_ = flags.Parse(args[1:])
	out := outputMode{json: *jsonOut}
	rest := flags.Args()

	switch args[0] {
	case "snapshot":
		var snap fireboard.Snapshot
		if err := invoke(ctx, conn, fireboard.ServiceName, "GetSnapshot", nil, &snap); err != nil {
			fatal("fireboard snapshot", err)
		}
		printSnapshot(out, snap)
	case "devices", "list":
		devices := listDevices(ctx, conn, *live)
		if out.json {
			out.printJSON(devices)
			return
		}
		rows := [][]string{{"DEVICE", "ID", "MODEL", "CHANNELS"}}
		for _, d := range devices {
			rows = append(rows, []string{d.Title, d.ID, d.Model, strconv.Itoa(len(d.Channels))})
		}
		out.table(rows)
	case "temps":
		id := deviceArg(ctx, conn, "fireboard temps", rest)
		var resp struct {
			Temps []fireboard.Reading `json:"temps"`
		}
		if err := invoke(ctx, conn, fireboard.ServiceName, "ListTemperatures", map[string]any{"device_id": id}, &resp); err != nil {
			fatal("fireboard temps", err)
		}
		if out.json {
			out.printJSON(resp.Temps)
			return
		}
		rows := [][]string{{"CHANNEL", "TEMP", "UNIT"}}
		for _, r := range resp.Temps {
			rows = append(rows, []string{strconv.Itoa(r.Channel), formatFloat(r.Temperature), r.Unit})
		}
		out.table(rows)
	case "alerts":
		id := deviceArg(ctx, conn, "fireboard alerts", rest)
		var resp struct {
			Alerts []fireboard.Alert `json:"alerts"`
		}
		if err := invoke(ctx, conn, fireboard.ServiceName, "ListAlerts", map[string]any{"device_id": id}, &resp); err != nil {
			fatal("fireboard alerts", err)
		}
		printAlerts(out, resp.Alerts)
	case "alert":
		alertCmd(ctx, conn, out, rest, *minTemp, *maxTemp, *enabled)
	case "refresh":
		in := map[string]any{}
		if len(rest) > 0 {
			in["device_id"] = deviceArg(ctx, conn, "fireboard refresh", rest)
		}
		var snap fireboard.Snapshot
		if err := invoke(ctx, conn, fireboard.ServiceName, "RefreshData", in, &snap); err != nil {
			fatal("fireboard refresh", err)
		}
		printSnapshot(out, snap)
	case "sessions":
		in := map[string]any{"limit": *limit}
		if len(rest) > 0 {
			in["device_id"] = deviceArg(ctx, conn, "fireboard sessions", rest)
		}
		var resp struct {
			Sessions []fireboard.CookSession `json:"sessions"`
		}
		if err := invoke(ctx, conn, fireboard.ServiceName, "ListSessions", in, &resp); err != nil {
			fatal("fireboard sessions", err)
		}
		if out.json {
			out.printJSON(resp.Sessions)
			return
		}
		rows := [][]string{{"SESSION", "ID", "START", "END"}}
		for _, s := range resp.Sessions {
			rows = append(rows, []string{s.Title, s.ID, s.Start, s.End})
		}
		out.table(rows)
	default:
		fireboardUsage()
		os.Exit(2)
	}
}

func alertCmd(ctx context.Context, conn *grpc.ClientConn, out outputMode, args []string, minTemp, maxTemp, enabled string) {
	if len(args) == 0 {
		fireboardUsage()
		os.Exit(2)
	}

	switch args[0] {
	case "create":
		if len(args) < 3 {
			fatal("fireboard alert create", fmt.Errorf("usage: gohome-cli fireboard alert [--min N] [--max N] create <device> <channel>"))
		}
		in := map[string]any{
			"device_id":  deviceArg(ctx, conn, "fireboard alert create", args[1:2]),
			"channel_id": args[2],
		}
		setIfPresent(in, "min_temp", minTemp)
		setIfPresent(in, "max_temp", maxTemp)
		var resp struct {
			Alert fireboard.Alert `json:"alert"`
		}
		if err := invoke(ctx, conn, fireboard.ServiceName, "CreateAlert", in, &resp); err != nil {
			fatal("fireboard alert create", err)
		}
		printAlerts(out, []fireboard.Alert{resp.Alert})
	case "update":
		if len(args) < 2 {
			fatal("fireboard alert update", fmt.Errorf("usage: gohome-cli fireboard alert [--min N] [--max N] [--enabled B] update <alert_id>"))
		}
		in := map[string]any{"alert_id": args[1]}
		setIfPresent(in, "min_temp", minTemp)
		setIfPresent(in, "max_temp", maxTemp)
		setIfPresent(in, "enabled", enabled)
		var resp struct {
			Alert fireboard.Alert `json:"alert"`
		}
		if err := invoke(ctx, conn, fireboard.ServiceName, "UpdateAlert", in, &resp); err != nil {
			fatal("fireboard alert update", err)
		}
		printAlerts(out, []fireboard.Alert{resp.Alert})
	case "delete":
		if len(args) < 2 {
			fatal("fireboard alert delete", fmt.Errorf("usage: gohome-cli fireboard alert delete <alert_id>"))
		}
		var resp struct {
			Deleted string `json:"deleted"`
		}
		if err := invoke(ctx, conn, fireboard.ServiceName, "DeleteAlert", map[string]any{"alert_id": args[1]}, &resp); err != nil {
			fatal("fireboard alert delete", err)
		}
		if out.json {
			out.printJSON(map[string]any{"deleted": resp.Deleted, "status": "ok"})
			return
		}
		fmt.Printf("ok: deleted alert %s\n", resp.Deleted)
	default:
		fireboardUsage()
		os.Exit(2)
	}
}

// validateCmd checks credentials against the cloud the same way setup does.
func validateCmd(args []string) {
	flags := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := flags.String("config", envOrDefault("GOHOME_CONFIG", config.DefaultPath), "Path to config.yaml")
	jsonOut := flags.Bool("json", false, "Output JSON")
	timeout := flags.Duration("timeout", 30*time.Second, "Validation timeout")
	_ = flags.Parse(args)
	out := outputMode{json: *jsonOut}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("fireboard validate", err)
	}
	if cfg.Fireboard == nil {
		fatal("fireboard validate", fmt.Errorf("no fireboard section in %s", *configPath))
	}
	fbCfg, err := fireboard.ConfigFrom(cfg.Fireboard)
	if err != nil {
		fatal("fireboard validate", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	info, err := fireboard.ValidateConnection(ctx, fbCfg)
	if out.json {
		result := map[string]any{"title": info.Title, "devices": info.Devices}
		if err != nil {
			result["error"] = fireboard.FormErrorCode(err)
			result["message"] = err.Error()
		}
		out.printJSON(result)
		if err != nil {
			os.Exit(1)
		}
		return
	}
	if err != nil {
		fatal("fireboard validate", fmt.Errorf("%s: %w", fireboard.FormErrorCode(err), err))
	}
	fmt.Printf("ok: %s\n", info.Title)
}

func listDevices(ctx context.Context, conn *grpc.ClientConn, live bool) []fireboard.Device {
	var resp struct {
		Devices []fireboard.Device `json:"devices"`
	}
	if err := invoke(ctx, conn, fireboard.ServiceName, "ListDevices", map[string]any{"live": live}, &resp); err != nil {
		fatal("fireboard devices", err)
	}
	return resp.Devices
}

// deviceArg accepts a device id or title.
func deviceArg(ctx context.Context, conn *grpc.ClientConn, action string, args []string) string {
	if len(args) == 0 {
		fatal(action, fmt.Errorf("missing device"))
	}
	input := args[0]
	options := make(map[string]string)
	for _, d := range listDevices(ctx, conn, false) {
		if d.ID == input {
			return d.ID
		}
		options[d.Title] = d.ID
	}
	id, err := resolveNamedID("device", input, options)
	if err != nil {
		fatal(action, err)
	}
	return id
}

func setIfPresent(in map[string]any, key, value string) {
	if value != "" {
		in[key] = value
	}
}

func printSnapshot(out outputMode, snap fireboard.Snapshot) {
	if out.json {
		out.printJSON(snap)
		return
	}
	fmt.Printf("status: %s\n", snap.APIStatus)
	if snap.Error != "" {
		fmt.Printf("error: %s\n", snap.Error)
	}
	fmt.Printf("updated: %s\n", snap.UpdatedAt.Format(time.RFC3339))
	rows := [][]string{{"DEVICE", "CHANNEL", "NAME", "TEMP", "UNIT"}}
	for _, d := range snap.Devices {
		for _, ch := range d.Channels {
			temp := "-"
			if ch.Temperature != nil {
				temp = formatFloat(*ch.Temperature)
			}
			rows = append(rows, []string{d.Title, strconv.Itoa(ch.Number), ch.Name, temp, ch.Unit})
		}
	}
	out.table(rows)
}

func printAlerts(out outputMode, alerts []fireboard.Alert) {
	if out.json {
		out.printJSON(alerts)
		return
	}
	rows := [][]string{{"ALERT", "DEVICE", "CHANNEL", "MIN", "MAX"}}
	for _, a := range alerts {
		rows = append(rows, []string{a.ID, a.Device, a.Channel, optionalFloat(a.Min), optionalFloat(a.Max)})
	}
	out.table(rows)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fireboardUsage() {
	fmt.Println("gohome-cli fireboard <command> [flags] [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  snapshot")
	fmt.Println("  devices [--live]")
	fmt.Println("  temps <device>")
	fmt.Println("  alerts <device>")
	fmt.Println("  alert [--min N] [--max N] create <device> <channel>")
	fmt.Println("  alert [--min N] [--max N] [--enabled B] update <alert_id>")
	fmt.Println("  alert delete <alert_id>")
	fmt.Println("  refresh [device]")
	fmt.Println("  sessions [--limit N] [device]")
	fmt.Println("  validate [--config path]")
	fmt.Println("")
	fmt.Println("All commands accept --json.")
}
