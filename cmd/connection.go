// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/Thermoquad/canlink/pkg/link"
)

const (
	passwordEnv      = "CANLINK_PASSWORD"
	dialTimeout      = 15 * time.Second
	handshakeTimeout = 10 * time.Second
)

// ErrConnectionClosed is returned by Read once the bridge has gone away.
var ErrConnectionClosed = errors.New("connection closed")

// Connection is the host end of a bridge link.
type Connection interface {
	io.ReadWriteCloser
}

// hostSerial asserts DTR and RTS for as long as it is open, which is what
// the bridge waits for before sending.
type hostSerial struct {
	*link.SerialChannel
}

func dialSerial(name string, baud int) (Connection, error) {
	ch, err := link.OpenSerial(context.Background(), name, baud, 1, slog.Default())
	if err != nil {
		return nil, err
	}
	port := ch.Port()
	if err := errors.Join(port.SetDTR(true), port.SetRTS(true)); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to assert DTR/RTS on %s: %w", name, err)
	}
	return hostSerial{ch}, nil
}

func (s hostSerial) Read(p []byte) (int, error) {
	return s.Port().Read(p)
}

func (s hostSerial) Close() error {
	port := s.Port()
	port.SetDTR(false)
	port.SetRTS(false)
	return s.SerialChannel.Close()
}

// hostWebSocket streams the payload of each text or binary message.
type hostWebSocket struct {
	conn    *websocket.Conn
	message io.Reader
}

func dialWebSocket(rawURL, username, password string, insecure bool) (Connection, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure}
	}

	header := http.Header{}
	if username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		header.Set("Authorization", "Basic "+token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return &hostWebSocket{conn: conn}, nil
}

func (w *hostWebSocket) Read(p []byte) (int, error) {
	for {
		if w.message != nil {
			n, err := w.message.Read(p)
			if err == io.EOF {
				w.message = nil
				if n == 0 {
					continue
				}
				err = nil
			}
			return n, err
		}

		kind, r, err := w.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, ErrConnectionClosed
			}
			return 0, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			w.message = r
		}
	}
}

func (w *hostWebSocket) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *hostWebSocket) Close() error {
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

// GetPassword reads the Basic auth password from CANLINK_PASSWORD, or
// prompts on the terminal.
func GetPassword() (string, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection dials the bridge named by --url or --port.
func OpenConnection() (Connection, string, error) {
	switch {
	case wsURL != "":
		var password string
		if wsUsername != "" {
			pw, err := GetPassword()
			if err != nil {
				return nil, "", err
			}
			password = pw
		}
		conn, err := dialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, "WebSocket: " + wsURL, nil

	case portName != "":
		conn, err := dialSerial(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}
	return nil, "", errors.New("either --port or --url must be specified")
}
