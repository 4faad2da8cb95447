package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"minddock/internal/domain"
	"minddock/internal/rag"
	"minddock/internal/service"
	"minddock/internal/tui"
)

var (
	searchTopK int
	tuiTopK    int
	memoryIDs  []string

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Rank an owner's memories against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerFlag()
			if err != nil {
				return err
			}
			results, err := application.RAG(application.Session()).Search(cmd.Context(), strings.Join(args, " "), owner, searchTopK)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matching memories")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%.3f  %s  %s\n", r.Score, r.Memory.ID, r.Memory.Title)
			}
			return nil
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the assistant, grounded in your memories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerFlag()
			if err != nil {
				return err
			}
			ids := make([]uuid.UUID, 0, len(memoryIDs))
			for _, raw := range memoryIDs {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid memory id %q: %w", raw, err)
				}
				ids = append(ids, id)
			}
			assistant, err := application.AssistantService(application.Session())
			if err != nil {
				return err
			}
			resp, err := assistant.Chat(cmd.Context(), service.ChatRequest{
				OwnerID:   owner,
				Message:   strings.Join(args, " "),
				MemoryIDs: ids,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Reply)
			if len(resp.UsedMemoryIDs) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nmemories used: %d\n", len(resp.UsedMemoryIDs))
			}
			return nil
		},
	}

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed every memory of an owner with the active backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerFlag()
			if err != nil {
				return err
			}
			engine := application.RAG(application.Session())
			n, err := engine.ReindexOwner(cmd.Context(), owner)
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d memories with %s\n", n, engine.Backend().Name())
			return err
		},
	}

	tuiCmd = &cobra.Command{
		Use:   "tui",
		Short: "Search memories interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerFlag()
			if err != nil {
				return err
			}
			s := ownerSearch{engine: application.RAG(application.Session()), owner: owner}
			m := tui.New(s, tuiTopK, "owner "+owner.String())
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
)

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	tuiCmd.Flags().IntVarP(&tuiTopK, "top-k", "k", 10, "number of results")
	askCmd.Flags().StringSliceVar(&memoryIDs, "memory", nil, "memory ids to ground the reply on (default: search)")
	rootCmd.AddCommand(searchCmd, askCmd, reindexCmd, tuiCmd)
}

// ownerSearch adapts the engine to the TUI for one owner.
type ownerSearch struct {
	engine *rag.Engine
	owner  uuid.UUID
}

func (s ownerSearch) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	return s.engine.Search(ctx, query, s.owner, topK)
}
