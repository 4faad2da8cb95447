package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"minddock/internal/domain"
	"minddock/internal/service"
)

var (
	memTitle    string
	memContent  string
	memTags     []string
	memContext  map[string]string
	memDevice   string
	memLocation string

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Capture a new memory",
		Example: `  minddock add --owner $ID --title Groceries --content "buy milk and eggs" --tags shopping
  minddock add --owner $ID --title Idea --context mood=curious`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerFlag()
			if err != nil {
				return err
			}
			s := application.Session()
			m, err := application.MemoryService(s).Create(cmd.Context(), service.CreateMemoryInput{
				OwnerID:        owner,
				Title:          memTitle,
				Content:        memContent,
				Tags:           memTags,
				Context:        contextMap(memContext),
				SourceDevice:   memDevice,
				SourceLocation: memLocation,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			return nil
		},
	}

	updateCmd = &cobra.Command{
		Use:   "update <memory-id>",
		Short: "Change fields of a memory and reindex it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid memory id: %w", err)
			}
			var in service.UpdateMemoryInput
			flags := cmd.Flags()
			if flags.Changed("title") {
				in.Title = &memTitle
			}
			if flags.Changed("content") {
				in.Content = &memContent
			}
			if flags.Changed("tags") {
				in.Tags = memTags
				if in.Tags == nil {
					in.Tags = []string{}
				}
			}
			if flags.Changed("context") {
				in.Context = contextMap(memContext)
			}
			if flags.Changed("device") {
				in.SourceDevice = &memDevice
			}
			if flags.Changed("location") {
				in.SourceLocation = &memLocation
			}
			m, err := application.MemoryService(application.Session()).Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%s)\n", m.ID, m.Title)
			return nil
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <memory-id>",
		Short: "Delete a memory and its embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid memory id: %w", err)
			}
			if err := application.MemoryService(application.Session()).Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List an owner's memories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := ownerFlag()
			if err != nil {
				return err
			}
			memories, err := application.MemoryService(application.Session()).List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			printMemories(cmd, memories)
			return nil
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{addCmd, updateCmd} {
		c.Flags().StringVar(&memTitle, "title", "", "memory title")
		c.Flags().StringVar(&memContent, "content", "", "memory content")
		c.Flags().StringSliceVar(&memTags, "tags", nil, "comma separated tags")
		c.Flags().StringToStringVar(&memContext, "context", nil, "context entries as key=value")
		c.Flags().StringVar(&memDevice, "device", "", "source device")
		c.Flags().StringVar(&memLocation, "location", "", "source location")
	}
	_ = addCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(addCmd, updateCmd, deleteCmd, listCmd)
}

func contextMap(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func printMemories(cmd *cobra.Command, memories []*domain.Memory) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tCREATED\tTITLE\tTAGS")
	for _, m := range memories {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Title, strings.Join(m.Tags, ","))
	}
}
