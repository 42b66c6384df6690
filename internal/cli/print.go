package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/client/mesh"
	"github.com/dkeye/Meet/internal/client/session"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
)

func printEvent(w io.Writer, e session.Event) {
	switch e := e.(type) {
	case session.StatusChanged:
		if e.Reason != "" {
			fmt.Fprintf(w, "* %s (%s)\n", e.Status, e.Reason)
		} else {
			fmt.Fprintf(w, "* %s\n", e.Status)
		}
	case session.RosterChanged:
		for _, id := range e.Added {
			fmt.Fprintf(w, "+ %s joined\n", id)
		}
		for _, id := range e.Removed {
			fmt.Fprintf(w, "- %s left\n", id)
		}
	case session.JoinRequested:
		fmt.Fprintf(w, "? %s wants to join (approve %s | reject %s)\n", e.Identity, e.Identity, e.Identity)
	case session.JoinCancelled:
		fmt.Fprintf(w, "? %s stopped waiting\n", e.Identity)
	case session.ChatReceived:
		if !e.Own {
			printChat(w, e.Message)
		}
	case session.ChatHistory:
		for _, m := range e.Messages {
			printChat(w, m)
		}
	case session.Kicked:
		fmt.Fprintf(w, "! removed by %s: %s\n", e.By, e.Reason)
	case session.ParticipantKicked:
		fmt.Fprintf(w, "! %s was removed by %s\n", e.Identity, e.By)
	case session.ReceiveOnly:
		fmt.Fprintf(w, "! no local media, receiving only: %v\n", e.Err)
	case session.ServerError:
		fmt.Fprintf(w, "! server: %s\n", e.Message)
	case session.PeerEvent:
		switch pe := e.Event.(type) {
		case mesh.PeerConnected:
			fmt.Fprintf(w, "~ media connected with %s\n", pe.Peer)
		case mesh.PeerFailed:
			fmt.Fprintf(w, "~ media with %s failed: %v\n", pe.Peer, pe.Err)
		case mesh.RemoteTrack:
			fmt.Fprintf(w, "~ receiving %s from %s\n", pe.Kind, pe.Peer)
		}
	}
}

func printChat(w io.Writer, m domain.ChatMessage) {
	fmt.Fprintf(w, "[%s] %s: %s\n", m.SentAt.Local().Format("15:04"), m.Sender, m.Text)
}

func renderRoster(w io.Writer, ids []domain.Identity) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Participant"})
	for i, id := range ids {
		t.AppendRow(table.Row{i + 1, id})
	}
	t.Render()
}

func renderStats(w io.Writer, stats map[domain.Identity]media.Counters) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Peer", "Audio pkts", "Video pkts", "Bytes"})
	for _, peer := range slices.Sorted(maps.Keys(stats)) {
		c := stats[peer]
		t.AppendRow(table.Row{peer, c.AudioPackets, c.VideoPackets, c.Bytes})
	}
	t.Render()
}
