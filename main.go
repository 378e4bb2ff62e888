package main

import (
	"embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/chazu/asphalt/pkg/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load(config.ResolvePath(""))
	if err != nil {
		fmt.Fprintln(os.Stderr, "asphalt:", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Log, os.Stderr)
	app := NewApp(cfg, log)

	err = wails.Run(&options.App{
		Title:            "asphalt",
		Width:            1280,
		Height:           800,
		AssetServer:      &assetserver.Options{Assets: assets},
		BackgroundColour: &options.RGBA{R: 32, G: 34, B: 37, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind:             []interface{}{app},
	})
	if err != nil {
		log.Error("wails run failed", slog.Any("error", err))
		os.Exit(1)
	}
}
