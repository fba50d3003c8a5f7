package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/chatengine/internal/transport/ws"
)

// Client represents a WebSocket client.
type Client struct {
	conn *websocket.Conn
	done chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// Send turns one line of input into a frame. Lines starting with a slash
// are client commands; everything else is a chat message.
func (c *Client) Send(line string) error {
	return c.conn.WriteJSON(parseLine(line))
}

func parseLine(line string) ws.Inbound {
	in := ws.Inbound{RequestID: "req_" + uuid.New().String()[:8]}
	fields := strings.Fields(line)
	switch {
	case len(fields) > 0 && fields[0] == "/history":
		in.Type = ws.TypeHistory
		if len(fields) > 1 {
			in.Limit, _ = strconv.Atoi(fields[1])
		}
	case line == "/status":
		in.Type = ws.TypeStatus
	case line == "/reset":
		in.Type = ws.TypeClear
	default:
		in.Type = ws.TypeChat
		in.Message = line
	}
	return in
}

// ReadMessages prints server frames until the connection closes.
func (c *Client) ReadMessages(out io.Writer) error {
	for {
		var frame ws.Outbound
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		render(out, frame)
	}
}

func render(out io.Writer, frame ws.Outbound) {
	switch frame.Type {
	case ws.TypeReply:
		fmt.Fprintf(out, "bot: %s\n", frame.Reply)
	case ws.TypeCleared:
		fmt.Fprintln(out, "(history cleared)")
	case ws.TypeTurns:
		for _, turn := range frame.Messages {
			fmt.Fprintf(out, "[%s] %s: %s\n", turn.Timestamp.Format(time.DateTime), turn.Role, turn.Content)
		}
	case ws.TypeState:
		fmt.Fprintf(out, "online, %d messages, local time %s\n", frame.MessagesCount, frame.LocalTime)
	case ws.TypeError:
		fmt.Fprintf(out, "error (%s): %s\n", frame.Code, frame.Message)
	default:
		fmt.Fprintf(out, "[%s] %+v\n", frame.Type, frame)
	}
}
