// Package spjs talks to a Serial Port JSON Server over websocket, so a
// serial device attached to another host can be used as if it were local.
package spjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("spjs client closed")

// Client keeps a websocket connection to the server, reconnecting as needed.
type Client struct {
	url string

	mx          sync.RWMutex
	serialPorts []SerialPort
	subs        map[string]chan string

	outgoing chan message
	closeCh  chan struct{}
	once     sync.Once

	// ReconnectDelay is the pause between connection attempts.
	ReconnectDelay time.Duration
}

type message struct {
	done    chan struct{}
	payload []byte
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}

type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}

type SerialPortList struct {
	SerialPorts []SerialPort
}

type SerialPort struct {
	Name         string
	Friendly     string
	SerialNumber string
	IsOpen       bool
	Baud         int
}

// NewClient starts connecting to url, e.g. "ws://localhost:8989/ws".
func NewClient(url string) *Client {
	c := &Client{
		url:            url,
		subs:           make(map[string]chan string),
		outgoing:       make(chan message, 100),
		closeCh:        make(chan struct{}),
		ReconnectDelay: 3 * time.Second,
	}
	go c.loop()
	return c
}

// Close stops the connection loop.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closeCh) })
	return nil
}

// SerialPorts returns the port list from the last "list" reply.
func (c *Client) SerialPorts() []SerialPort {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return append([]SerialPort(nil), c.serialPorts...)
}

// subscribe returns a channel receiving the raw data read from port. Only
// one subscriber per port is kept; a new one replaces the old.
func (c *Client) subscribe(port string) chan string {
	ch := make(chan string, 256)
	c.mx.Lock()
	c.subs[port] = ch
	c.mx.Unlock()
	return ch
}

func (c *Client) unsubscribe(port string, ch chan string) {
	c.mx.Lock()
	if c.subs[port] == ch {
		delete(c.subs, port)
	}
	c.mx.Unlock()
}

func parseMessage(data []byte, msg map[string]json.RawMessage) (val any, err error) {
	check := func(fieldName string, v any) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Cmd", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (c *Client) dispatch(val any) {
	switch msg := val.(type) {
	case *DataFrame:
		c.mx.RLock()
		ch := c.subs[msg.Port]
		c.mx.RUnlock()
		if ch == nil {
			return
		}
		select {
		case ch <- msg.Data:
		default:
			log.Println("WARN: dropping data from", msg.Port)
		}
	case *SerialPortList:
		c.mx.Lock()
		c.serialPorts = msg.SerialPorts
		c.mx.Unlock()
	case *ErrorMessage:
		log.Println("ERROR: spjs:", msg.Error)
	}
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Println("ERROR: read:", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			log.Println("ERROR: read:", err)
			continue
		}
		val, err := parseMessage(data, msg)
		if err != nil {
			continue
		}
		c.dispatch(val)
	}
}

func (c *Client) loop() {
	var nextUp message

reconnect:
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		log.Println("Connecting to", c.url)
		ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			log.Println("ERROR: connect:", err)
			select {
			case <-c.closeCh:
				return
			case <-time.After(c.ReconnectDelay):
			}
			continue
		}
		log.Println("Connected.")
		ch := make(chan struct{})
		go c.readLoop(ws, ch)
		if err := ws.WriteMessage(websocket.TextMessage, []byte("list")); err != nil {
			ws.Close()
			continue
		}

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					log.Println("ERROR: send:", err)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-c.closeCh:
				ws.Close()
				return
			case <-ch:
				ws.Close()
				continue reconnect
			case nextUp = <-c.outgoing:
			}
		}
	}
}

// WriteString sends a raw server command, e.g. "open /dev/ttyACM0 9600".
// It returns once the command has been written to the socket.
func (c *Client) WriteString(ctx context.Context, data string) error {
	done := make(chan struct{})
	select {
	case c.outgoing <- message{done: done, payload: []byte(data)}:
	case <-c.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-c.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
