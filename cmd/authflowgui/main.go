// Command authflowgui shows the flow page in a desktop window, starting the
// authflow server next to it when none is running.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	webview "github.com/webview/webview_go"
)

var (
	serverAddr = flag.String("addr", "localhost:1930", "Address of the authflow server")
	configPath = flag.String("config", "", "Config file passed to a server this window starts")
	kiosk      = flag.Bool("kiosk", false, "Hide the context menu and open at full size")
)

type windowSize struct{ w, h int }

func main() {
	flag.Parse()

	// webview must own the main thread
	runtime.LockOSThread()

	// The server, configs/ and .env live next to the executable
	if exe, err := os.Executable(); err == nil {
		if err := os.Chdir(filepath.Dir(exe)); err != nil {
			slog.Error("Cannot enter executable directory", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := webview.New(false)
	defer w.Destroy()

	size := windowSize{1024, 768}
	if *kiosk {
		size = windowSize{1920, 1080}
		w.Init(`window.addEventListener('contextmenu', e => e.preventDefault(), true);`)
	}
	w.SetTitle("AuthFlow")
	w.SetSize(size.w, size.h, webview.HintNone)

	onLog := func(msg string) {
		w.Dispatch(func() { w.Eval("window.addLogLine(" + jsString(msg) + ")") })
	}
	onReady := func(url string) {
		w.Dispatch(func() { w.Navigate(url) })
	}

	var args []string
	if *configPath != "" {
		args = []string{"-config", *configPath}
	}
	launcher := NewLauncher(serverBinary(), *serverAddr, args, onLog, onReady)
	defer launcher.Stop()

	loader, err := serveLoader()
	if err != nil {
		slog.Error("Cannot serve loader page", "error", err)
		os.Exit(1)
	}
	defer loader.Close()
	w.Navigate("http://" + loader.Addr().String())

	launcher.Start(ctx)
	w.Run()
}

// serveLoader serves the startup log page until the server is up.
func serveLoader() (net.Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	go func() {
		_ = http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(loaderPage))
		}))
	}()
	return ln, nil
}

func serverBinary() string {
	if runtime.GOOS == "windows" {
		return "./authflow.exe"
	}
	return "./authflow"
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
