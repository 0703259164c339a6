package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// treeNode is the JSON form of an item subtree.
type treeNode struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Referrers int         `json:"referrers"`
	Children  []*treeNode `json:"children,omitempty"`
}

func (a *app) newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [id]",
		Short: "Print an item subtree with the number of links to each item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := types.RootItemID
			if len(args) == 1 {
				id = args[0]
			}
			ctx := cmd.Context()

			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			item, err := s.backend.GetItem(ctx, id)
			if err != nil {
				return lookupError(err)
			}
			node, err := buildTree(ctx, s.backend, item)
			if err != nil {
				return sysError(err)
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(node)
			}
			printTree(out, node, 0)
			return nil
		},
	}
}

func buildTree(ctx context.Context, repo types.Repository, item *types.Item) (*treeNode, error) {
	n, err := repo.GetReferrerCount(ctx, item)
	if err != nil {
		return nil, err
	}
	node := &treeNode{ID: item.ItemID, Name: item.DisplayName(), Path: item.Path, Referrers: n}
	children, err := repo.Children(ctx, item.ItemID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		c, err := buildTree(ctx, repo, child)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, c)
	}
	return node, nil
}

func printTree(w io.Writer, node *treeNode, depth int) {
	line := strings.Repeat("  ", depth) + node.Name + " " + mutedStyle.Render("{"+node.ID+"}")
	if node.Referrers > 0 {
		line += " " + warnStyle.Render(fmt.Sprintf("[%d links]", node.Referrers))
	}
	fmt.Fprintln(w, line)
	for _, c := range node.Children {
		printTree(w, c, depth+1)
	}
}

// walkSubtree calls fn for item and each descendant, parents first.
func walkSubtree(ctx context.Context, store types.ContentStore, item *types.Item, fn func(*types.Item) error) error {
	if err := fn(item); err != nil {
		return err
	}
	children, err := store.Children(ctx, item.ItemID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := walkSubtree(ctx, store, child, fn); err != nil {
			return err
		}
	}
	return nil
}
