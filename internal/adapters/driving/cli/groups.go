package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Inspect change groups",
}

var groupsListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List the change groups of a session",
	Long: `Lists deltas analysed on the source side and migration instructions
generated for the peer side. Use --status to filter.`,
	Args: cobra.ExactArgs(1),
	RunE: runGroupsList,
}

var groupsShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "Show a change group and its actions",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsShow,
}

var (
	groupsSide     string
	groupsStatuses []string
)

func init() {
	groupsListCmd.Flags().StringVar(&groupsSide, "side", "all", "source, peer or all")
	groupsListCmd.Flags().StringSliceVar(&groupsStatuses, "status", nil, "only groups in these statuses (repeatable)")

	groupsCmd.AddCommand(groupsListCmd, groupsShowCmd)
	rootCmd.AddCommand(groupsCmd)
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errSessionsNotConfigured
	}
	if pipelineService == nil {
		return errPipelineNotConfigured
	}

	ctx := context.Background()
	session, err := sessionService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	var sides []string
	switch groupsSide {
	case "source":
		sides = []string{session.SourceID}
	case "peer":
		sides = []string{session.PeerSourceID}
	case "all", "":
		sides = []string{session.SourceID, session.PeerSourceID}
	default:
		return fmt.Errorf("%w: side must be source, peer or all", domain.ErrInvalidInput)
	}

	statuses := make([]domain.ChangeGroupStatus, 0, len(groupsStatuses))
	for _, s := range groupsStatuses {
		status := domain.ChangeGroupStatus(s)
		if !status.IsValid() {
			return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, s)
		}
		statuses = append(statuses, status)
	}
	if len(statuses) == 0 {
		statuses = domain.AllChangeGroupStatuses()
	}

	var groups []domain.ChangeGroup
	for _, side := range sides {
		found, err := pipelineService.ListGroups(ctx, session.ID, side, statuses...)
		if err != nil {
			return fmt.Errorf("list groups: %w", err)
		}
		groups = append(groups, found...)
	}
	if len(groups) == 0 {
		cmd.Println("No change groups.")
		return nil
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].SourceID != groups[j].SourceID {
			return groups[i].SourceID == session.SourceID
		}
		return groups[i].ExecutionOrder < groups[j].ExecutionOrder
	})

	p := newPrinter(cmd.OutOrStdout())
	rows := make([][]string, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		backlog := ""
		if g.ContainsBackloggedAction {
			backlog = "yes"
		}
		rows = append(rows, []string{
			g.ID, g.SourceID, g.Name, p.status(g.Status),
			fmt.Sprintf("%d", len(g.Actions)), backlog, truncate(g.Comment, 40),
		})
	}
	p.table([]string{"ID", "SIDE", "REVISION", "STATUS", "ACTIONS", "BACKLOG", "COMMENT"}, rows)
	return nil
}

func runGroupsShow(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errPipelineNotConfigured
	}

	g, err := pipelineService.GetGroup(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	cmd.Printf("ID:        %s\n", g.ID)
	cmd.Printf("Session:   %s\n", g.SessionID)
	cmd.Printf("Side:      %s\n", g.SourceID)
	cmd.Printf("Revision:  %s\n", g.Name)
	cmd.Printf("Status:    %s\n", p.status(g.Status))
	cmd.Printf("Owner:     %s\n", g.Owner)
	cmd.Printf("Time:      %s\n", formatTime(g.ChangeTime))
	cmd.Printf("Comment:   %s\n", g.Comment)
	if g.ReflectedChangeGroupID != "" {
		cmd.Printf("Reflects:  %s\n", g.ReflectedChangeGroupID)
	}
	if len(g.Actions) == 0 {
		cmd.Println("No actions.")
		return nil
	}

	rows := make([][]string, 0, len(g.Actions))
	for _, a := range g.Actions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", a.Order), string(a.Kind), string(a.ItemType),
			a.SourcePath, a.Path, a.Version,
		})
	}
	p.table([]string{"#", "KIND", "TYPE", "FROM", "PATH", "VERSION"}, rows)
	return nil
}
