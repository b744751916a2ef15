package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// RequireItemSetID validates that exactly one positive item set id is provided.
func RequireItemSetID(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`%w: missing required argument: <item_set_id>

Usage: %s

Example:
  %s 12`, dynis.ErrInvalidUsage, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d: %w", len(args), dynis.ErrInvalidUsage)
	}
	if _, err := parseItemSetID(args[0]); err != nil {
		return err
	}
	return nil
}

func parseItemSetID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("item set id must be a positive integer, got %q: %w", arg, dynis.ErrInvalidUsage)
	}
	return id, nil
}
