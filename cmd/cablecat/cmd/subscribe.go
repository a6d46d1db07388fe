package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sonirico/libcable"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <cable-url> <channel> [param=value...]",
	Short: "Subscribe to a channel and print what it broadcasts",
	Long: `Subscribe to a channel of an ActionCable server and print every message
received on it to stdout.

Extra positional arguments are channel params. Use --perform to invoke
channel actions once the subscription is confirmed.

Examples:
  cablecat subscribe ws://localhost:3000/cable ChatChannel room=1
  cablecat subscribe wss://example.com/cable AppearanceChannel --origin https://example.com
  cablecat subscribe ws://localhost:3000/cable ChatChannel room=1 --perform 'speak:{"message":"hi"}'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSubscribe,
}

var (
	headers       []string
	origin        string
	performs      []string
	reconnect     bool
	transportName string
	dialTimeout   time.Duration
)

func init() {
	rootCmd.AddCommand(subscribeCmd)

	subscribeCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "handshake header as key=value (repeatable)")
	subscribeCmd.Flags().StringVar(&origin, "origin", "", "Origin header sent on handshake")
	subscribeCmd.Flags().StringArrayVarP(&performs, "perform", "p", nil, "action[:json-params] to perform once subscribed (repeatable)")
	subscribeCmd.Flags().BoolVar(&reconnect, "reconnect", false, "reconnect automatically when the connection drops")
	subscribeCmd.Flags().StringVar(&transportName, "transport", "fasthttp", "websocket transport (fasthttp, coder)")
	subscribeCmd.Flags().DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "handshake timeout")
}

type performRequest struct {
	action string
	params map[string]any
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	zl, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	params, err := parseKeyValues(args[2:])
	if err != nil {
		return err
	}

	requests := make([]performRequest, 0, len(performs))
	for _, raw := range performs {
		req, err := parsePerform(raw)
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}

	header, err := parseHeaders(headers, origin)
	if err != nil {
		return err
	}

	logger := libcable.NewZapLogger(zl)
	opts := libcable.Options{
		Headers:          header,
		HandshakeTimeout: dialTimeout,
		Reconnection:     reconnect,
		Logger:           logger,
	}

	switch transportName {
	case "fasthttp", "":
	case "coder":
		opts.Transport = libcable.NewCoderTransportFromOptions(logger, opts)
	default:
		return errors.Errorf("unknown transport %q", transportName)
	}

	consumer, err := libcable.NewConsumer(args[0], opts)
	if err != nil {
		return err
	}
	defer consumer.Shutdown()

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	channel := libcable.NewChannel(args[1], params)
	subscribeAndPrint(cmd.OutOrStdout(), zl, consumer, channel, requests, finish)

	consumer.On(libcable.EventFailed, func(e libcable.Event) {
		if !reconnect {
			finish(e.Err)
		}
	})
	consumer.On(libcable.EventReconnectGaveUp, func(e libcable.Event) {
		finish(errors.Errorf("gave up reconnecting after %d attempts", e.Attempt))
	})

	zl.Info("Connecting", zap.String("url", args[0]), zap.String("identifier", channel.Identifier()))
	if err := consumer.Connect(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		zl.Debug("Signal received, exiting", zap.String("signal", sig.String()))
		disconnect(consumer, zl)
		return nil
	case err := <-done:
		disconnect(consumer, zl)
		return err
	}
}

func subscribeAndPrint(
	out io.Writer,
	zl *zap.Logger,
	consumer *libcable.Consumer,
	channel libcable.Channel,
	requests []performRequest,
	finish func(error),
) *libcable.Subscription {
	sub := consumer.Subscriptions().Create(channel)
	identifier := sub.Identifier()

	sub.OnConnected(func() {
		zl.Info("Subscribed", zap.String("identifier", identifier))
		if len(requests) == 0 {
			return
		}
		// off the callback goroutine, so more actions than the queue holds do not wait on the queue itself
		go func() {
			for _, req := range requests {
				if !sub.Perform(req.action, req.params) {
					zl.Warn("Cannot perform action", zap.String("action", req.action))
				}
			}
		}()
	})
	sub.OnRejected(func() {
		finish(errors.Errorf("subscription %s rejected", identifier))
	})
	sub.OnReceived(func(data any) {
		bts, err := json.Marshal(data)
		if err != nil {
			zl.Warn("Failed to marshal message to JSON", zap.Error(err), zap.Any("message", data))
			return
		}
		fmt.Fprintf(out, "%s\t%s\n", identifier, bts)
	})
	sub.OnDisconnected(func() {
		zl.Info("Disconnected", zap.String("identifier", identifier))
	})
	sub.OnFailed(func(err error) {
		zl.Warn("Connection failed", zap.String("identifier", identifier), zap.Error(err))
	})

	return sub
}

// disconnect closes gracefully and waits a little for the server to acknowledge.
func disconnect(consumer *libcable.Consumer, zl *zap.Logger) {
	if err := consumer.Disconnect(); err != nil {
		zl.Warn("Error during disconnect", zap.Error(err))
		return
	}

	deadline := time.Now().Add(2 * time.Second)
	for consumer.State() != libcable.StateClosed && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}

func parseKeyValues(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("invalid param %q, expected key=value", arg)
		}
		params[key] = value
	}
	return params, nil
}

func parseHeaders(raw []string, origin string) (http.Header, error) {
	header := make(http.Header)
	for _, h := range raw {
		key, value, ok := strings.Cut(h, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("invalid header %q, expected key=value", h)
		}
		header.Add(key, value)
	}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return header, nil
}

func parsePerform(raw string) (performRequest, error) {
	action, rawParams, hasParams := strings.Cut(raw, ":")
	if action == "" {
		return performRequest{}, errors.Errorf("invalid perform %q, missing action", raw)
	}

	req := performRequest{action: action}
	if !hasParams || rawParams == "" {
		return req, nil
	}

	if err := json.Unmarshal([]byte(rawParams), &req.params); err != nil {
		return performRequest{}, errors.Wrapf(err, "invalid params for action %q", action)
	}
	return req, nil
}
