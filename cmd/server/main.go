package main

import (
	"log/slog"
	"os"

	"worklog/internal/app/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	server.Run()
}
