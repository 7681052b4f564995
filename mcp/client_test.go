package mcp

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
)

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

// pipeClient builds a client over canned server output, capturing requests.
func pipeClient(serverOutput string) (*Client, *bytes.Buffer) {
	var in bytes.Buffer
	return &Client{
		stdin:  nopWriteCloser{&in},
		stdout: bufio.NewReader(strings.NewReader(serverOutput)),
	}, &in
}

func TestCallReturnsMatchingResponse(t *testing.T) {
	c, in := pipeClient(`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}` + "\n")

	result, err := c.call(context.Background(), "tools/list", nil)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if string(result) != `{"tools":[]}` {
		t.Errorf("unexpected result: %s", result)
	}
	if !strings.Contains(in.String(), `"method":"tools/list"`) {
		t.Errorf("request not written: %s", in.String())
	}
}

func TestCallSkipsNotifications(t *testing.T) {
	out := `{"jsonrpc":"2.0","method":"notifications/message","params":{"level":"info","data":"starting"}}` + "\n" +
		`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}` + "\n" +
		`{"jsonrpc":"2.0","method":"notifications/message","params":{"level":"info","data":"noise"}}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"ok"}]}}` + "\n"
	c, _ := pipeClient(out)

	// Notifications before each response must not desync the id matching
	// across consecutive calls.
	if _, err := c.call(context.Background(), "tools/list", nil); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	result, err := c.call(context.Background(), "tools/call", nil)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !strings.Contains(string(result), `"text":"ok"`) {
		t.Errorf("second response mismatched: %s", result)
	}
}

func TestCallErrorResponse(t *testing.T) {
	c, _ := pipeClient(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}` + "\n")

	_, err := c.call(context.Background(), "bogus/method", nil)
	if err == nil || !strings.Contains(err.Error(), "method not found") {
		t.Fatalf("expected rpc error, got %v", err)
	}
}
