package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"secretsanta/client"
	"secretsanta/models"
	"secretsanta/session"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room as a participant and wait for your match",
	RunE:  runJoin,
}

var (
	flagServerURL string
	flagRoom      string
	flagName      string
	flagAvatar    string
	flagCreate    bool
	flagStartAt   int
)

func init() {
	flags := joinCmd.Flags()
	flags.StringVar(&flagServerURL, "server-url", "http://127.0.0.1:8080", "room server base URL")
	flags.StringVar(&flagRoom, "room", "", "room code")
	flags.StringVar(&flagName, "name", "", "display name")
	flags.StringVar(&flagAvatar, "avatar", "", "avatar token or URL")
	flags.BoolVar(&flagCreate, "create", false, "create the room and become its host")
	flags.IntVar(&flagStartAt, "start-at", 0, "as host, start the draw once this many participants are in the room")
	_ = joinCmd.MarkFlagRequired("room")
	_ = joinCmd.MarkFlagRequired("name")
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	p := &printer{out: out, startAt: flagStartAt}
	conn, err := client.Dial(ctx, flagServerURL, client.JoinOptions{
		Room:   flagRoom,
		Name:   flagName,
		Avatar: flagAvatar,
		Create: flagCreate,
		Feedback: session.FeedbackFunc(func(e models.ErrorPayload) {
			fmt.Fprintf(out, "server error: %s\n", e.Message)
		}),
		OnState: p.onState,
	})
	if err != nil {
		return err
	}
	defer conn.Close()
	p.start = conn.StartGame

	return conn.Run(ctx)
}

// printer reports the interesting state changes of one session.
type printer struct {
	out     io.Writer
	startAt int
	start   func() error
	last    models.AppState
	started bool
}

func (p *printer) onState(s models.AppState) {
	if s.CurrentView != p.last.CurrentView {
		fmt.Fprintf(p.out, "view: %s\n", s.CurrentView)
		if s.CurrentView == models.ViewLobby {
			fmt.Fprintf(p.out, "joined room %s as %s\n", s.RoomCode, s.UserName)
		}
	}
	if !sameRoster(p.last.Participants, s.Participants) {
		names := make([]string, 0, len(s.Participants))
		for _, part := range s.Participants {
			if part.IsHost {
				names = append(names, part.Name+" (host)")
			} else {
				names = append(names, part.Name)
			}
		}
		fmt.Fprintf(p.out, "participants: %s\n", strings.Join(names, ", "))
	}
	if target, ok := s.MyTarget.Name(); ok && !p.last.MyTarget.IsAssigned() {
		fmt.Fprintf(p.out, "you are buying a gift for %s\n", target)
	}
	p.last = s

	if p.startAt > 0 && !p.started && p.start != nil && s.CurrentView == models.ViewLobby &&
		isHost(s) && len(s.Participants) >= p.startAt {
		p.started = true
		if err := p.start(); err != nil {
			log.Error().Err(err).Msg("[join] start draw")
		}
	}
}

func isHost(s models.AppState) bool {
	for _, part := range s.Participants {
		if part.Name == s.UserName {
			return part.IsHost
		}
	}
	return false
}

func sameRoster(a, b []models.Participant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
