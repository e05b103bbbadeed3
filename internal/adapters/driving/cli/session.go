package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage migration sessions",
	Long: `A session pairs a source repository with a peer system. Mapped paths
select what is migrated; cloaked paths exclude sub-trees of mapped paths.`,
}

var sessionAddCmd = &cobra.Command{
	Use:   "add <session-id>",
	Short: "Add a session",
	Example: `  vcsbridge session add app --type git --config path=/src/app \
      --source app-git --peer app-svn --map /trunk --cloak /trunk/vendor`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionAdd,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionRemoveCmd = &cobra.Command{
	Use:   "remove <session-id>",
	Short: "Remove a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionRemove,
}

var sessionTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List supported repository types",
	Args:  cobra.NoArgs,
	RunE:  runSessionTypes,
}

var sessionAddFlags struct {
	name        string
	source      string
	peer        string
	repoType    string
	config      map[string]string
	mapped      []string
	cloaked     []string
	pageSize    int
	skipComment string
}

func init() {
	f := sessionAddCmd.Flags()
	f.StringVar(&sessionAddFlags.name, "name", "", "display name (defaults to the session id)")
	f.StringVar(&sessionAddFlags.source, "source", "", "id of the analysed side")
	f.StringVar(&sessionAddFlags.peer, "peer", "", "id of the side instructions are produced for")
	f.StringVar(&sessionAddFlags.repoType, "type", "", "repository type (see 'session types')")
	f.StringToStringVar(&sessionAddFlags.config, "config", nil, "repository setting as key=value (repeatable)")
	f.StringSliceVar(&sessionAddFlags.mapped, "map", nil, "server path to migrate (repeatable)")
	f.StringSliceVar(&sessionAddFlags.cloaked, "cloak", nil, "sub-path of a mapped path to exclude (repeatable)")
	f.IntVar(&sessionAddFlags.pageSize, "page-size", 0, "revisions fetched per history page")
	f.StringVar(&sessionAddFlags.skipComment, "skip-comment", "", "skip change-sets whose comment contains this text")
	_ = sessionAddCmd.MarkFlagRequired("type")
	_ = sessionAddCmd.MarkFlagRequired("map")

	sessionCmd.AddCommand(sessionAddCmd, sessionListCmd, sessionShowCmd, sessionRemoveCmd, sessionTypesCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionAdd(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errSessionsNotConfigured
	}

	id := args[0]
	source := sessionAddFlags.source
	if source == "" {
		source = id + "-source"
	}
	peer := sessionAddFlags.peer
	if peer == "" {
		peer = id + "-peer"
	}

	session, err := sessionService.Add(context.Background(), domain.Session{
		ID:           id,
		Name:         sessionAddFlags.name,
		SourceID:     source,
		PeerSourceID: peer,
		Repository: domain.RepositoryConfig{
			Type:   sessionAddFlags.repoType,
			Config: sessionAddFlags.config,
		},
		MappedPaths:  sessionAddFlags.mapped,
		CloakedPaths: sessionAddFlags.cloaked,
		PageSize:     sessionAddFlags.pageSize,
		SkipComment:  sessionAddFlags.skipComment,
	})
	if err != nil {
		return fmt.Errorf("add session: %w", err)
	}

	cmd.Printf("Session %s added: %s -> %s (%d mapped, %d cloaked)\n",
		session.ID, session.SourceID, session.PeerSourceID,
		len(session.MappedPaths), len(session.CloakedPaths))
	return nil
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errSessionsNotConfigured
	}

	sessions, err := sessionService.List(context.Background())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		cmd.Println("No sessions configured.")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		rows = append(rows, []string{
			s.ID,
			s.Repository.Type,
			s.SourceID + " -> " + s.PeerSourceID,
			strings.Join(s.MappedPaths, ", "),
			formatTime(s.CreatedAt),
		})
	}
	newPrinter(cmd.OutOrStdout()).table([]string{"ID", "TYPE", "SIDES", "MAPPED", "CREATED"}, rows)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errSessionsNotConfigured
	}

	s, err := sessionService.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	cmd.Printf("ID:           %s\n", s.ID)
	cmd.Printf("Name:         %s\n", s.Name)
	cmd.Printf("Source:       %s\n", s.SourceID)
	cmd.Printf("Peer:         %s\n", s.PeerSourceID)
	cmd.Printf("Type:         %s\n", s.Repository.Type)
	keys := make([]string, 0, len(s.Repository.Config))
	for k := range s.Repository.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.Repository.Config[k]
		if k == "token" {
			v = "****"
		}
		cmd.Printf("  %s = %s\n", k, v)
	}
	cmd.Printf("Mapped:       %s\n", strings.Join(s.MappedPaths, ", "))
	if len(s.CloakedPaths) > 0 {
		cmd.Printf("Cloaked:      %s\n", strings.Join(s.CloakedPaths, ", "))
	}
	cmd.Printf("Page size:    %d\n", s.EffectivePageSize())
	if s.SkipComment != "" {
		cmd.Printf("Skip comment: %s\n", s.SkipComment)
	}
	return nil
}

func runSessionRemove(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errSessionsNotConfigured
	}

	if err := sessionService.Remove(context.Background(), args[0]); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	cmd.Printf("Session %s removed.\n", args[0])
	return nil
}

func runSessionTypes(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errSessionsNotConfigured
	}

	for _, t := range sessionService.SupportedTypes() {
		cmd.Println(t)
	}
	return nil
}
