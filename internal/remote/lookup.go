package remote

import "context"

// FindNodeByName looks up a single child of folderUID by name. It drains
// IterateFolderChildren fully even after finding a match, per the
// "iterate children fully or the cache never completes" contract documented
// on Client.IterateFolderChildren.
func FindNodeByName(ctx context.Context, client Client, folderUID, name string) (Node, bool, error) {
	var (
		found Node
		ok    bool
	)

	err := client.IterateFolderChildren(ctx, folderUID, func(n Node) error {
		if n.Name == name {
			found = n
			ok = true
		}

		return nil
	})
	if err != nil {
		return Node{}, false, err //nolint:wrapcheck // callers wrap with context
	}

	return found, ok, nil
}
