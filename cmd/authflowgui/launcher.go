package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	readyTimeout = 30 * time.Second
	pollInterval = 250 * time.Millisecond
	logInterval  = time.Second
)

// Launcher brings up the authflow server, or attaches to one already
// listening, and hands the window its URL once /health answers.
type Launcher struct {
	bin     string
	args    []string
	base    string
	client  *http.Client
	onLog   func(string)
	onReady func(string)

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewLauncher returns a launcher for the server binary bin listening on
// addr. args are passed to bin when it has to be started.
func NewLauncher(bin, addr string, args []string, onLog, onReady func(string)) *Launcher {
	return &Launcher{
		bin:     bin,
		args:    args,
		base:    baseURL(addr),
		client:  &http.Client{Timeout: time.Second},
		onLog:   onLog,
		onReady: onReady,
	}
}

func (l *Launcher) logf(format string, args ...any) {
	if l.onLog != nil {
		l.onLog(fmt.Sprintf(format, args...))
	}
}

// Start runs the startup sequence in the background.
func (l *Launcher) Start(ctx context.Context) {
	go l.run(ctx)
}

func (l *Launcher) run(ctx context.Context) {
	if l.healthy(ctx) {
		l.logf("> Server already active.")
		go l.followLog(ctx)
	} else {
		l.logf("> Server not running. Starting %s...", l.bin)
		if err := l.spawn(); err != nil {
			l.logf("> Error: %v", err)
			return
		}
	}

	l.logf("> Waiting for server...")
	if err := l.waitHealthy(ctx); err != nil {
		l.logf("> Error: %v", err)
		return
	}
	l.logf("> Server ready!")
	if l.onReady != nil {
		l.onReady(l.base)
	}
}

func (l *Launcher) spawn() error {
	if info, err := os.Stat(l.bin); err != nil || info.IsDir() {
		return fmt.Errorf("%s not found next to the launcher", l.bin)
	}

	cmd := exec.Command(l.bin, l.args...)
	hideWindow(cmd)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		return err
	}

	exited := make(chan struct{})
	l.mu.Lock()
	l.cmd, l.exited = cmd, exited
	l.mu.Unlock()

	go l.relay(pr)
	go func() {
		err := cmd.Wait()
		pw.Close()
		close(exited)
		if err != nil {
			l.logf("Server exited with error: %v", err)
		}
	}()
	return nil
}

func (l *Launcher) relay(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		l.logf("%s", sc.Text())
	}
}

func (l *Launcher) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/health", http.NoBody)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (l *Launcher) waitHealthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		if l.healthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.New("server timed out")
		case <-tick.C:
		}
	}
}

// followLog mirrors the status log of a server this launcher did not start.
func (l *Launcher) followLog(ctx context.Context) {
	tick := time.NewTicker(logInterval)
	defer tick.Stop()
	var seen []string
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		lines, err := l.latestLines(ctx)
		if err != nil {
			continue
		}
		for _, line := range unseen(seen, lines) {
			l.logf("%s", line)
		}
		seen = lines
	}
}

func (l *Launcher) latestLines(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/api/log/latest?n=20", http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body struct {
		Lines []string `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Lines, nil
}

// unseen returns the lines of cur that follow the last line of prev.
func unseen(prev, cur []string) []string {
	if len(prev) == 0 {
		return cur
	}
	last := prev[len(prev)-1]
	for i := len(cur) - 1; i >= 0; i-- {
		if cur[i] == last {
			return cur[i+1:]
		}
	}
	return cur
}

// Stop shuts down a server this launcher started, asking nicely first.
func (l *Launcher) Stop() {
	l.mu.Lock()
	cmd, exited := l.cmd, l.exited
	l.mu.Unlock()
	if cmd == nil {
		return
	}

	slog.Info("Sending shutdown request to server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, l.base+"/api/shutdown", http.NoBody)
	if resp, err := l.client.Do(req); err != nil {
		slog.Warn("Shutdown request failed", "error", err)
	} else {
		resp.Body.Close()
	}

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		slog.Warn("Server did not exit, killing it")
		_ = cmd.Process.Kill()
	}
}

// baseURL turns a listen address into a URL on 127.0.0.1, avoiding
// localhost resolution quirks.
func baseURL(addr string) string {
	host, port, found := strings.Cut(addr, ":")
	if !found {
		return "http://" + addr
	}
	if host == "" || host == "localhost" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":" + port
}
