// Package client implements the CLI drivers (read, write, flush)
// that exercise a running broker over its Connect API.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"

	pb "github.com/otterscale/timedmq/api/broker/v1"
	"github.com/otterscale/timedmq/internal/config"
)

// readCap bounds the bytes delivered per read. Longer messages are
// truncated by the broker's destructive delivery contract.
const readCap = 4096

// Client drives a broker session from the command line.
type Client struct {
	conf *config.Config
	rpc  pb.BrokerServiceClient
	log  *slog.Logger
}

// New builds a Client from the shared client configuration.
func New(conf *config.Config) *Client {
	var opts []connect.ClientOption
	if token := conf.ClientAuthToken(); token != "" {
		opts = append(opts, connect.WithInterceptors(bearerInterceptor(token)))
	}

	httpClient := &http.Client{Timeout: 10 * time.Minute}

	return &Client{
		conf: conf,
		rpc:  pb.NewBrokerServiceClient(httpClient, conf.ClientServerURL(), opts...),
		log:  slog.Default().With("component", "client"),
	}
}

// bearerInterceptor attaches the configured token to every RPC.
func bearerInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("Authorization", "Bearer "+token)
			return next(ctx, req)
		}
	}
}

// open creates a session on the configured instance and applies the
// configured timeouts.
func (c *Client) open(ctx context.Context) (string, error) {
	resp, err := c.rpc.Open(ctx, connect.NewRequest(&pb.OpenRequest{
		Instance: int32(c.conf.ClientInstance()),
	}))
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	handle := resp.Msg.Handle

	if d := c.conf.ClientSendTimeout(); d > 0 {
		if err := c.control(ctx, handle, pb.CommandSetSendTimeout, d); err != nil {
			return "", err
		}
	}
	if d := c.conf.ClientRecvTimeout(); d > 0 {
		if err := c.control(ctx, handle, pb.CommandSetRecvTimeout, d); err != nil {
			return "", err
		}
	}
	return handle, nil
}

func (c *Client) control(ctx context.Context, handle string, command int32, arg time.Duration) error {
	_, err := c.rpc.Control(ctx, connect.NewRequest(&pb.ControlRequest{
		Handle:  handle,
		Command: command,
		ArgMs:   arg.Milliseconds(),
	}))
	if err != nil {
		return fmt.Errorf("control command %d: %w", command, err)
	}
	return nil
}

// closeSession detaches the session with a fresh context so that the
// cleanup survives cancellation of the driver's own context.
func (c *Client) closeSession(handle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.rpc.Close(ctx, connect.NewRequest(&pb.CloseRequest{Handle: handle})); err != nil {
		c.log.Warn("failed to close session", "handle", handle, "error", err)
	}
}

// RunReader consumes messages until ctx is cancelled, printing each
// payload to stdout.
func (c *Client) RunReader(ctx context.Context) error {
	handle, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer c.closeSession(handle)

	c.log.Info("reading", "instance", c.conf.ClientInstance(), "handle", handle)

	for {
		if ctx.Err() != nil {
			return nil
		}

		resp, err := c.rpc.Read(ctx, connect.NewRequest(&pb.ReadRequest{
			Handle: handle,
			Cap:    readCap,
		}))
		switch {
		case err == nil:
			fmt.Printf("read: %s\n", resp.Msg.Payload)
		case errors.Is(err, context.Canceled) || connect.CodeOf(err) == connect.CodeCanceled:
			return nil
		case connect.CodeOf(err) == connect.CodeNotFound:
			// Empty instance on a non-blocking session: poll.
			c.log.Debug("no message available")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.conf.ClientInterval()):
			}
		case connect.CodeOf(err) == connect.CodeDeadlineExceeded:
			c.log.Debug("read timed out, retrying")
		case connect.CodeOf(err) == connect.CodeAborted:
			c.log.Info("read canceled by flush, retrying")
		default:
			return fmt.Errorf("read: %w", err)
		}
	}
}

// RunWriter posts messages. With auto set it posts a random numeric
// message every configured interval until interrupted, mirroring the
// historical load driver; with args it posts each argument once;
// otherwise it reads lines from stdin.
func (c *Client) RunWriter(ctx context.Context, args []string, auto bool) error {
	handle, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer c.closeSession(handle)

	c.log.Info("writing", "instance", c.conf.ClientInstance(), "handle", handle)

	switch {
	case auto:
		ticker := time.NewTicker(c.conf.ClientInterval())
		defer ticker.Stop()
		for {
			if err := c.post(ctx, handle, []byte(fmt.Sprintf("%d", rand.Int63()))); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

	case len(args) > 0:
		for _, arg := range args {
			if err := c.post(ctx, handle, []byte(arg)); err != nil {
				return err
			}
		}
		return nil

	default:
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			if ctx.Err() != nil {
				return nil
			}
			if err := c.post(ctx, handle, scanner.Bytes()); err != nil {
				return err
			}
		}
	}
}

func (c *Client) post(ctx context.Context, handle string, payload []byte) error {
	resp, err := c.rpc.Write(ctx, connect.NewRequest(&pb.WriteRequest{
		Handle:  handle,
		Payload: payload,
	}))
	switch {
	case err == nil:
		if resp.Msg.Written == 0 {
			c.log.Info("write deferred", "size", len(payload))
		} else {
			c.log.Info("written", "bytes", resp.Msg.Written)
		}
		return nil
	case errors.Is(err, context.Canceled) || connect.CodeOf(err) == connect.CodeCanceled:
		return nil
	case connect.CodeOf(err) == connect.CodeResourceExhausted:
		c.log.Warn("instance full, message dropped", "size", len(payload))
		return nil
	default:
		return fmt.Errorf("write: %w", err)
	}
}

// RunFlush resets the configured instance.
func (c *Client) RunFlush(ctx context.Context) error {
	_, err := c.rpc.Flush(ctx, connect.NewRequest(&pb.FlushRequest{
		Instance: int32(c.conf.ClientInstance()),
	}))
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	c.log.Info("instance flushed", "instance", c.conf.ClientInstance())
	return nil
}
