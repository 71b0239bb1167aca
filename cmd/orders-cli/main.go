// Command orders-cli sends order commands over the message bus, for smoke
// testing a running orders-service.
//
// Usage:
//
//	orders-cli [-servers nats://127.0.0.1:4222] [-timeout 5s] <command> [flags]
//
// Commands:
//
//	create     -items p1:2,p2:1
//	list       -page 1 -limit 10 [-status PENDING]
//	get        -id <uuid>
//	set-status -id <uuid> -status PAID
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/nats-io/nats.go"

	"orders-service/internal/handler"
)

func main() {
	var (
		servers string
		timeout time.Duration
	)
	flag.StringVar(&servers, "servers", "nats://127.0.0.1:4222", "comma-separated NATS server URLs (or NATS_SERVERS env)")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	flag.Parse()

	if v := os.Getenv("NATS_SERVERS"); v != "" && servers == "nats://127.0.0.1:4222" {
		servers = v
	}
	if flag.NArg() == 0 {
		slog.Error("command is required: create, list, get or set-status")
		os.Exit(2)
	}

	if err := run(servers, timeout, flag.Arg(0), flag.Args()[1:]); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(servers string, timeout time.Duration, command string, args []string) error {
	subject, payload, err := buildRequest(command, args)
	if err != nil {
		return err
	}

	conn, err := nats.Connect(servers, nats.Name("orders-cli"))
	if err != nil {
		return errors.Wrap(err, "connect nats")
	}
	defer conn.Close()

	msg, err := conn.Request(subject, payload, timeout)
	if err != nil {
		return errors.Wrapf(err, "request %s", subject)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, msg.Data, "", "  "); err != nil {
		fmt.Println(string(msg.Data))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func buildRequest(command string, args []string) (subject string, payload []byte, err error) {
	switch command {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		items := fs.String("items", "", "line items as productId:quantity[,productId:quantity...]")
		_ = fs.Parse(args)

		parsed, err := parseItems(*items)
		if err != nil {
			return "", nil, err
		}
		payload, err := json.Marshal(map[string]any{"items": parsed})
		return handler.SubjectCreateOrder, payload, err

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		page := fs.Int("page", 1, "1-indexed page")
		limit := fs.Int("limit", 10, "rows per page")
		status := fs.String("status", "", "optional status filter")
		_ = fs.Parse(args)

		req := map[string]any{"page": *page, "limit": *limit}
		if *status != "" {
			req["status"] = *status
		}
		payload, err := json.Marshal(req)
		return handler.SubjectFindAllOrders, payload, err

	case "get":
		fs := flag.NewFlagSet("get", flag.ExitOnError)
		id := fs.String("id", "", "order identifier")
		_ = fs.Parse(args)

		payload, err := json.Marshal(map[string]any{"id": *id})
		return handler.SubjectFindOneOrder, payload, err

	case "set-status":
		fs := flag.NewFlagSet("set-status", flag.ExitOnError)
		id := fs.String("id", "", "order identifier")
		status := fs.String("status", "", "target status")
		_ = fs.Parse(args)

		payload, err := json.Marshal(map[string]any{"id": *id, "status": *status})
		return handler.SubjectChangeOrderStatus, payload, err

	default:
		return "", nil, errors.Errorf("unknown command %q", command)
	}
}

func parseItems(spec string) ([]map[string]any, error) {
	if spec == "" {
		return nil, errors.New("-items is required, e.g. -items p1:2,p2:1")
	}

	var items []map[string]any
	for _, part := range strings.Split(spec, ",") {
		productID, qtyStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, errors.Errorf("malformed item %q, want productId:quantity", part)
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil {
			return nil, errors.Wrapf(err, "quantity of item %q", part)
		}
		items = append(items, map[string]any{"productId": productID, "quantity": qty})
	}
	return items, nil
}
