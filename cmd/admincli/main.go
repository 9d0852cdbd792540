// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/crowdbox/internal/api/connect"
)

var (
	app    = kingpin.New("crowdbox-admincli", "crowdbox jukebox admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// toggle command
	toggleCmd = app.Command("toggle", "Pause or resume the current track")

	// skip command
	skipCmd = app.Command("skip", "Skip the current track")

	// volume command
	volumeCmd   = app.Command("volume", "Set the volume (20-100)")
	volumeLevel = volumeCmd.Arg("level", "Volume level").Required().Int()

	// reorder command
	reorderCmd      = app.Command("reorder", "Move a queued track")
	reorderTrackID  = reorderCmd.Arg("track-id", "Track ID").Required().String()
	reorderPosition = reorderCmd.Arg("position", "New 0-based position").Required().Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminServiceClient(http.DefaultClient, *server)
	ctx := context.Background()

	switch command {
	case toggleCmd.FullCommand():
		toggle(ctx, client, *token)
	case skipCmd.FullCommand():
		skip(ctx, client, *token)
	case volumeCmd.FullCommand():
		setVolume(ctx, client, *token, *volumeLevel)
	case reorderCmd.FullCommand():
		reorder(ctx, client, *token, *reorderTrackID, *reorderPosition)
	}
}

func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(apiconnect.AdminTokenHeader, token)
	return req
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func toggle(ctx context.Context, client *apiconnect.AdminServiceClient, token string) {
	resp, err := client.Toggle(ctx, withToken(&apiconnect.ToggleRequest{}, token))
	exitOnError(err)

	t := resp.Msg.CurrentTrack
	if t == nil {
		fmt.Println("Nothing playing")
		return
	}
	fmt.Printf("%s - %s: %s\n", t.Singer, t.Title, t.State)
}

func skip(ctx context.Context, client *apiconnect.AdminServiceClient, token string) {
	resp, err := client.Skip(ctx, withToken(&apiconnect.SkipRequest{}, token))
	exitOnError(err)

	t := resp.Msg.CurrentTrack
	if t == nil {
		fmt.Println("Track skipped, nothing left to play")
		return
	}
	fmt.Printf("Track skipped, now playing: %s - %s\n", t.Singer, t.Title)
}

func setVolume(ctx context.Context, client *apiconnect.AdminServiceClient, token string, level int) {
	resp, err := client.SetVolume(ctx, withToken(&apiconnect.SetVolumeRequest{Level: level}, token))
	exitOnError(err)

	if int(resp.Msg.Level) != level {
		fmt.Printf("Volume set to %d (requested %d, clamped)\n", resp.Msg.Level, level)
		return
	}
	fmt.Printf("Volume set to %d\n", resp.Msg.Level)
}

func reorder(ctx context.Context, client *apiconnect.AdminServiceClient, token, trackID string, position int) {
	resp, err := client.Reorder(ctx, withToken(&apiconnect.ReorderRequest{
		TrackID:  trackID,
		Position: position,
	}, token))
	exitOnError(err)

	fmt.Printf("Queue (%d):\n", len(resp.Msg.Queue))
	for i, t := range resp.Msg.Queue {
		marker := " "
		if t.ID == trackID {
			marker = "*"
		}
		fmt.Printf(" %s%5s  %s - %s [%s]\n", marker, humanize.Ordinal(i+1), t.Singer, t.Title, t.State)
	}
}
