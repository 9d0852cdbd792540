// Package main provides the user CLI entry point for testing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/crowdbox/internal/api/connect"
	"github.com/osa030/crowdbox/internal/domain/track"
)

var (
	app    = kingpin.New("crowdbox-usercli", "crowdbox jukebox user client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	// search command
	searchCmd    = app.Command("search", "Search tracks")
	searchSource = searchCmd.Flag("source", "Source to search (cache, spotify, youtube)").Short('s').Default("cache").String()
	searchQuery  = searchCmd.Arg("query", "Search query (empty lists the whole cache)").String()

	// request command
	requestCmd    = app.Command("request", "Request a track")
	requestSource = requestCmd.Flag("source", "Track source (cache, spotify, youtube)").Short('s').Default("spotify").String()
	requestID     = requestCmd.Arg("track-id", "Track ID").Required().String()
	requestTitle  = requestCmd.Flag("title", "Track title").String()
	requestSinger = requestCmd.Flag("singer", "Track singer").String()
	requestLength = requestCmd.Flag("duration", "Track duration").Duration()

	// vote command
	voteCmd = app.Command("vote", "Vote to skip the current track")

	// state command
	stateCmd = app.Command("state", "Show the player state")

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Subscribe to notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewJukeboxServiceClient(http.DefaultClient, *server)
	ctx := context.Background()

	switch command {
	case searchCmd.FullCommand():
		search(ctx, client, *searchSource, *searchQuery)
	case requestCmd.FullCommand():
		requestTrack(ctx, client, apiconnect.Track{
			ID:          *requestID,
			Title:       *requestTitle,
			Singer:      *requestSinger,
			DurationSec: int64(*requestLength / time.Second),
			Source:      *requestSource,
		})
	case voteCmd.FullCommand():
		vote(ctx, client)
	case stateCmd.FullCommand():
		state(ctx, client)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	}
}

func search(ctx context.Context, client *apiconnect.JukeboxServiceClient, source, query string) {
	resp, err := client.Search(ctx, connect.NewRequest(&apiconnect.SearchRequest{
		Source: source,
		Query:  query,
	}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	name := resp.Msg.DisplayName
	if name == "" {
		name = resp.Msg.Source
	}
	fmt.Printf("%s: %d results\n", name, len(resp.Msg.Tracks))
	for _, t := range resp.Msg.Tracks {
		fmt.Printf("  %s  %s - %s (%s)\n", t.ID, t.Singer, t.Title, formatSeconds(t.DurationSec))
	}
}

func requestTrack(ctx context.Context, client *apiconnect.JukeboxServiceClient, t apiconnect.Track) {
	resp, err := client.Enqueue(ctx, connect.NewRequest(&apiconnect.EnqueueRequest{Track: t}))
	if err != nil {
		var cerr *connect.Error
		if code := apiconnect.RejectCode(err); code != "" && errors.As(err, &cerr) {
			fmt.Printf("Rejected [%s]: %s\n", code, cerr.Message())
			os.Exit(1)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Success: %s\n", resp.Msg.Message)
}

func vote(ctx context.Context, client *apiconnect.JukeboxServiceClient) {
	resp, err := client.Vote(ctx, connect.NewRequest(&apiconnect.VoteRequest{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("[%s] %s\n", resp.Msg.Status, resp.Msg.Message)
	if resp.Msg.Required > 0 {
		fmt.Printf("Votes: %d/%d\n", resp.Msg.Votes, resp.Msg.Required)
	}
}

func state(ctx context.Context, client *apiconnect.JukeboxServiceClient) {
	resp, err := client.GetState(ctx, connect.NewRequest(&apiconnect.GetStateRequest{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printState(resp.Msg)
}

func subscribe(ctx context.Context, client *apiconnect.JukeboxServiceClient) {
	stream, err := client.Subscribe(ctx, connect.NewRequest(&apiconnect.SubscribeRequest{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	for stream.Receive() {
		printNotification(stream.Msg())
	}

	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNotification(n *apiconnect.Notification) {
	fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)

	switch n.Type {
	case apiconnect.NotificationInitialState:
		fmt.Println("=== INITIAL STATE ===")
		if n.State != nil {
			printState(n.State)
		}
	case apiconnect.NotificationPlaylist:
		fmt.Println("=== PLAYLIST CHANGED ===")
		printQueue(n.Queue)
	case apiconnect.NotificationCurrentTrack:
		fmt.Println("=== TRACK CHANGED ===")
		printCurrent(n.CurrentTrack)
	case apiconnect.NotificationVolume:
		fmt.Println("=== VOLUME CHANGED ===")
		fmt.Printf("  Volume: %d\n", n.Volume)
	default:
		fmt.Printf("=== UNKNOWN EVENT (%s) ===\n", n.Type)
	}
}

func printState(s *apiconnect.PlayerState) {
	printCurrent(s.CurrentTrack)
	if s.CurrentTrack != nil {
		fmt.Printf("  Elapsed: %s\n", formatSeconds(s.PlayDurationSec))
	}
	fmt.Printf("Volume: %d\n", s.Volume)
	printQueue(s.Queue)
}

func printCurrent(t *apiconnect.Track) {
	if t == nil {
		fmt.Println("Nothing playing")
		return
	}
	fmt.Println("Now Playing:")
	fmt.Printf("  %s - %s (%s)\n", t.Singer, t.Title, formatSeconds(t.DurationSec))
	fmt.Printf("  ID: %s  Source: %s  State: %s\n", t.ID, t.Source, t.State)
	if t.RandomlyChosen {
		fmt.Println("  Random pick from the cache")
	} else if t.RequestedBy != "" {
		fmt.Printf("  Requested by: %s\n", t.RequestedBy)
	}
}

func printQueue(queue []apiconnect.Track) {
	fmt.Printf("Queue (%d):\n", len(queue))
	for i, t := range queue {
		fmt.Printf("  %5s  %s - %s [%s]\n", humanize.Ordinal(i+1), t.Singer, t.Title, t.State)
	}
}

func formatSeconds(sec int64) string {
	return track.FormatDuration(time.Duration(sec) * time.Second)
}
