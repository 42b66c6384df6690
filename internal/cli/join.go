package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/client/media"
	"github.com/dkeye/Meet/internal/client/session"
	"github.com/dkeye/Meet/internal/client/transport"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newJoinCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <room-id>",
		Short: "Join a meeting and enter the interactive prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runJoin(cmd.Context(), cfg, domain.RoomID(args[0]), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.Bool("audio", true, "send audio")
	f.Bool("video", false, "send video")
	f.String("record", "", "write every remote track into this directory")
	_ = v.BindPFlag("media.audio", f.Lookup("audio"))
	_ = v.BindPFlag("media.video", f.Lookup("video"))
	_ = v.BindPFlag("media.record_dir", f.Lookup("record"))
	return cmd
}

func newSession(cfg *config.ClientConfig, room domain.RoomID) (*session.Session, error) {
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	local := domain.Identity(cfg.Identity)
	ch := transport.New(transport.Config{
		BaseDelay:   cfg.Reconnect.BaseDelay,
		MaxDelay:    cfg.Reconnect.MaxDelay,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
	}, transport.WSDialer{
		Server:   cfg.Server,
		Room:     room,
		Identity: local,
		Codec:    codec.Name(),
	}, codec)

	scfg := session.Config{
		Local:            local,
		Room:             room,
		Transport:        ch,
		Factory:          rtc.NewFactory(cfg.ICEServers),
		Acquirer:         media.SyntheticAcquirer{},
		Media:            media.Request{Audio: cfg.Media.Audio, Video: cfg.Media.Video},
		AllowReceiveOnly: cfg.Media.AllowReceiveOnly,
		ConnectTimeout:   cfg.ConnectTimeout,
	}
	if cfg.Media.RecordDir != "" {
		rec, err := media.NewRecorder(cfg.Media.RecordDir)
		if err != nil {
			return nil, err
		}
		scfg.Playback = rec.SinkFor
	}
	return session.New(scfg), nil
}

func runJoin(ctx context.Context, cfg *config.ClientConfig, room domain.RoomID, in io.Reader, out io.Writer) error {
	s, err := newSession(cfg, room)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- s.Run(ctx) }()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for e := range s.Events() {
			printEvent(out, e)
		}
	}()

	r := &repl{s: s, out: out}
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	fmt.Fprintln(out, "type 'help' for commands")
	for {
		select {
		case err := <-result:
			<-printed
			return err
		case line, ok := <-lines:
			if !ok {
				_ = s.Leave()
				lines = nil
				continue
			}
			quit, err := r.exec(line)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
			}
			if quit {
				if err := s.Leave(); err != nil {
					log.Debug().Err(err).Str("module", "cli").Msg("leave")
				}
			}
		}
	}
}
