package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aisim/internal/protocol"
)

const replyBuffer = 64 << 10

var (
	sendAddr    string
	sendName    string
	sendValue   float64
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one actuator command and print the sensor reply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
		defer cancel()
		c, err := dialControl(ctx, sendAddr)
		if err != nil {
			return err
		}
		defer c.Close()
		snap, err := c.roundTrip(ctx, protocol.Command{Name: sendName, Value: sendValue})
		if err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendAddr, "addr", "localhost:8080", "Control server address")
	f.StringVar(&sendName, "an", "", "Actuator name")
	f.Float64Var(&sendValue, "av", 0, "Actuator value")
	f.DurationVar(&sendTimeout, "timeout", 5*time.Second, "Dial and reply timeout")
	sendCmd.MarkFlagRequired("an")
}

// controlClient speaks the request/reply protocol over one connection.
type controlClient struct {
	conn net.Conn
	buf  []byte
}

func dialControl(ctx context.Context, addr string) (*controlClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &controlClient{conn: conn, buf: make([]byte, replyBuffer)}, nil
}

// roundTrip writes one request and reads one reply.
func (c *controlClient) roundTrip(ctx context.Context, cmd protocol.Command) (protocol.Snapshot, error) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
	}
	if _, err := io.WriteString(c.conn, cmd.String()); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return protocol.ParseSnapshot(c.buf[:n])
}

func (c *controlClient) Close() error { return c.conn.Close() }

func printSnapshot(w io.Writer, snap protocol.Snapshot) {
	for _, r := range snap {
		vals := make([]string, len(r.Values))
		for i, v := range r.Values {
			vals[i] = strconv.FormatFloat(v, 'f', protocol.ValuePrecision, 64)
		}
		fmt.Fprintf(w, "%s: %s\n", r.Name, strings.Join(vals, " "))
	}
}
