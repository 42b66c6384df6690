package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCreateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a meeting hosted by your identity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			room, err := createMeeting(ctx, http.DefaultClient, cfg.Server, name, domain.Identity(cfg.Identity))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %q\nroom id: %s\njoin with: meet join %s --identity <you>\n",
				room.Name, room.ID, room.ID)
			return nil
		},
	}
}

func createMeeting(ctx context.Context, hc *http.Client, server, name string, host domain.Identity) (*domain.Room, error) {
	body, err := json.Marshal(map[string]string{"name": name, "host": string(host)})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(server, "/") + "/api/meetings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("create meeting: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var room domain.Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, fmt.Errorf("invalid server response: %w", err)
	}
	return &room, nil
}
