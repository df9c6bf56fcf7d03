// Package remotetest provides an in-memory fake of remote.Client for
// testing the executor and engine without a real backend.
package remotetest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cloudsync/syncd/internal/remote"
)

// node is the fake's internal bookkeeping for one remote node.
type node struct {
	uid      string
	name     string
	parent   string
	isDir    bool
	content  []byte
	revision int
}

// Fake is an in-memory, single-process implementation of remote.Client.
// It is not safe for concurrent mutation of the same UID from outside its
// own mutex-protected methods, but concurrent calls against different UIDs
// behave as a real backend would.
type Fake struct {
	mu         sync.Mutex
	nodes      map[string]*node // uid -> node
	nextUID    int
	rootUID    string
	FailNext   map[string]error // method name -> error to return once
	OnUpload   func(parentUID, name string) error
	OnRelocate func(uid string) error
}

// New returns a Fake with a pre-created root folder.
func New() *Fake {
	f := &Fake{nodes: make(map[string]*node), FailNext: make(map[string]error)}
	f.rootUID = f.newUID()
	f.nodes[f.rootUID] = &node{uid: f.rootUID, name: "", isDir: true}

	return f
}

func (f *Fake) newUID() string {
	f.nextUID++

	return fmt.Sprintf("node-%d", f.nextUID)
}

func (f *Fake) GetMyFilesRootFolder(ctx context.Context) (remote.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	root := f.nodes[f.rootUID]

	return remote.Node{UID: root.uid, Name: root.name, IsDirectory: true}, nil
}

func (f *Fake) IterateFolderChildren(ctx context.Context, folderUID string, fn func(remote.Node) error) error {
	f.mu.Lock()
	var children []remote.Node
	for _, n := range f.nodes {
		if n.parent == folderUID {
			children = append(children, remote.Node{UID: n.uid, Name: n.name, IsDirectory: n.isDir})
		}
	}
	f.mu.Unlock()

	for _, c := range children {
		if err := fn(c); err != nil {
			return err
		}
	}

	return nil
}

func (f *Fake) CreateFolder(ctx context.Context, parentUID, name string) (remote.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeFailure("CreateFolder"); err != nil {
		return remote.Node{}, err
	}

	uid := f.newUID()
	f.nodes[uid] = &node{uid: uid, name: name, parent: parentUID, isDir: true}

	return remote.Node{UID: uid, Name: name, IsDirectory: true}, nil
}

// uploader is the fake's Uploader/UploadController in one, since the fake
// has no real async transfer to model.
type uploader struct {
	f         *Fake
	uid       string // empty for a create; set for a revision upload
	parentUID string
	name      string
}

func (u *uploader) WriteStream(ctx context.Context, body io.Reader, progress remote.ProgressFunc) (remote.UploadController, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("remotetest: reading upload body: %w", err)
	}

	if progress != nil {
		progress(int64(len(content)))
	}

	u.f.mu.Lock()
	defer u.f.mu.Unlock()

	if err := u.f.takeFailure("Upload"); err != nil {
		return nil, err
	}

	if u.f.OnUpload != nil {
		if err := u.f.OnUpload(u.parentUID, u.name); err != nil {
			return nil, err
		}
	}

	if u.uid == "" {
		uid := u.f.newUID()
		u.f.nodes[uid] = &node{uid: uid, name: u.name, parent: u.parentUID, content: content}
		u.uid = uid
	} else {
		n, ok := u.f.nodes[u.uid]
		if !ok {
			return nil, fmt.Errorf("remotetest: revision target %s not found", u.uid)
		}

		n.content = content
		n.revision++
	}

	return &completedUpload{f: u.f, uid: u.uid, parentUID: u.parentUID}, nil
}

type completedUpload struct {
	f         *Fake
	uid       string
	parentUID string
}

func (c *completedUpload) Completion(ctx context.Context) (remote.UploadResult, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()

	n := c.f.nodes[c.uid]

	return remote.UploadResult{NodeUID: n.uid, ParentNodeUID: n.parent, IsDirectory: n.isDir}, nil
}

func (f *Fake) GetFileUploader(ctx context.Context, parentUID, name string, meta remote.UploadMetadata) (remote.Uploader, error) {
	return &uploader{f: f, parentUID: parentUID, name: name}, nil
}

func (f *Fake) GetFileRevisionUploader(ctx context.Context, uid string, meta remote.UploadMetadata) (remote.Uploader, error) {
	f.mu.Lock()
	n, ok := f.nodes[uid]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("remotetest: revision target %s not found", uid)
	}

	return &uploader{f: f, uid: uid, parentUID: n.parent, name: n.name}, nil
}

func (f *Fake) TrashNodes(ctx context.Context, uids []string) []remote.NodeOutcome {
	return f.deleteNodes(uids, "TrashNodes")
}

func (f *Fake) DeleteNodes(ctx context.Context, uids []string) []remote.NodeOutcome {
	return f.deleteNodes(uids, "DeleteNodes")
}

func (f *Fake) deleteNodes(uids []string, method string) []remote.NodeOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	outcomes := make([]remote.NodeOutcome, 0, len(uids))

	for _, uid := range uids {
		if err := f.takeFailure(method); err != nil {
			outcomes = append(outcomes, remote.NodeOutcome{UID: uid, Err: err})
			continue
		}

		delete(f.nodes, uid)
		outcomes = append(outcomes, remote.NodeOutcome{UID: uid})
	}

	return outcomes
}

func (f *Fake) RelocateNode(ctx context.Context, uid string, opts remote.RelocateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeFailure("RelocateNode"); err != nil {
		return err
	}

	if f.OnRelocate != nil {
		if err := f.OnRelocate(uid); err != nil {
			return err
		}
	}

	n, ok := f.nodes[uid]
	if !ok {
		return fmt.Errorf("remotetest: relocate target %s not found", uid)
	}

	if opts.NewParentUID != "" {
		n.parent = opts.NewParentUID
	}

	if opts.NewName != "" {
		n.name = opts.NewName
	}

	return nil
}

// takeFailure pops and returns the queued failure for method, if any. Must
// be called with f.mu held.
func (f *Fake) takeFailure(method string) error {
	if err, ok := f.FailNext[method]; ok {
		delete(f.FailNext, method)
		return err
	}

	return nil
}

// RootUID returns the fake's root folder UID, for tests seeding NodeMapping
// rows.
func (f *Fake) RootUID() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rootUID
}
