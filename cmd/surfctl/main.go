// surfctl is a command-line client for the FileSurf server.
//
// Sub-commands:
//
//	surfctl health                        Check that the server is reachable
//	surfctl tree [flags]                  Print the index as JSON
//	surfctl render [flags]                Print the explorer tree view
//	surfctl cat <path>                    Print a file's content
//	surfctl put <path> [-content text]    Replace a file's content (stdin if no -content)
//	surfctl add [flags] <path>            Create a file or folder at path
//	surfctl rm <path>                     Delete a file or folder
//	surfctl watch                         Stream index mutations
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fruitsalade/filesurf/internal/logging"
	"github.com/fruitsalade/filesurf/internal/pathindex"
	"github.com/fruitsalade/filesurf/internal/treeview"
	"github.com/fruitsalade/filesurf/pkg/client"
	"github.com/fruitsalade/filesurf/pkg/models"
	"github.com/fruitsalade/filesurf/pkg/tree"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: surfctl <health|tree|render|cat|put|add|rm|watch> [flags] [args]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	if err := logging.Init(logging.Config{Level: envOr("LOG_LEVEL", "warn"), Format: "console", OutputPath: "stderr"}); err != nil {
		fmt.Fprintln(os.Stderr, "surfctl: init logging:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "health":
		err = cmdHealth(ctx, args)
	case "tree":
		err = cmdTree(ctx, args)
	case "render":
		err = cmdRender(ctx, args)
	case "cat":
		err = cmdCat(ctx, args)
	case "put":
		err = cmdPut(ctx, args)
	case "add":
		err = cmdAdd(ctx, args)
	case "rm":
		err = cmdRm(ctx, args)
	case "watch":
		err = cmdWatch(ctx, args)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "surfctl:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newFlags returns a flag set carrying the shared -server flag.
func newFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	server := fs.String("server", envOr("FILESURF_SERVER", "http://localhost:8080"), "Server URL")
	return fs, server
}

func newClient(server string) *client.Client {
	return client.New(client.Config{BaseURL: server, Logger: logging.Named("client")})
}

func cmdHealth(ctx context.Context, args []string) error {
	fs, server := newFlags("health")
	fs.Parse(args)

	if err := newClient(*server).Ping(ctx); err != nil {
		return fmt.Errorf("server %s unreachable: %w", *server, err)
	}
	fmt.Printf("%s ok\n", *server)
	return nil
}

func cmdTree(ctx context.Context, args []string) error {
	fs, server := newFlags("tree")
	fs.Parse(args)

	resp, err := newClient(*server).Index(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func cmdRender(ctx context.Context, args []string) error {
	fs, server := newFlags("render")
	width := fs.Int("width", 250, "Panel width used for name truncation")
	expandAll := fs.Bool("expand-all", false, "Expand every folder")
	selected := fs.String("select", "", "Path to mark as selected")
	rootPath := fs.String("root", "", "Render only the subtree at this path")
	fs.Parse(args)

	resp, err := newClient(*server).Tree(ctx)
	if err != nil {
		return err
	}
	root := resp.Root
	if *rootPath != "" {
		if root = tree.Find(resp.Root, *rootPath); root == nil {
			return fmt.Errorf("render: %q not in tree", *rootPath)
		}
	}
	idx, err := pathindex.Build(root)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	view := treeview.New(idx, treeview.Options{})
	if *expandAll {
		view.ExpandAll(idx)
	}
	return treeview.Render(os.Stdout, view.Rows(idx, *selected, *width))
}

func cmdCat(ctx context.Context, args []string) error {
	fs, server := newFlags("cat")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("cat: expected <path>")
	}

	resp, err := newClient(*server).Content(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, resp.Content)
	return err
}

func cmdPut(ctx context.Context, args []string) error {
	fs, server := newFlags("put")
	content := fs.String("content", "", "New content (reads stdin when unset)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("put: expected <path>")
	}

	text := *content
	if !flagSet(fs, "content") {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	resp, err := newClient(*server).Update(ctx, fs.Arg(0), text)
	if err != nil {
		return err
	}
	fmt.Printf("updated %s (revision %d)\n", resp.Path, resp.Revision)
	return nil
}

func cmdAdd(ctx context.Context, args []string) error {
	fs, server := newFlags("add")
	folder := fs.Bool("folder", false, "Create a folder instead of a file")
	content := fs.String("content", "", "Initial file content")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("add: expected <path>")
	}
	parent, name := tree.ParentOf(fs.Arg(0)), tree.BaseName(fs.Arg(0))
	if parent == "" {
		return fmt.Errorf("add: %q has no parent folder", fs.Arg(0))
	}

	node := models.File(name, *content)
	if *folder {
		node = models.Folder(name)
	}
	resp, err := newClient(*server).Add(ctx, parent, node)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (revision %d)\n", resp.Path, resp.Revision)
	return nil
}

func cmdRm(ctx context.Context, args []string) error {
	fs, server := newFlags("rm")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("rm: expected <path>")
	}
	if err := newClient(*server).Delete(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", fs.Arg(0))
	return nil
}

func cmdWatch(ctx context.Context, args []string) error {
	fs, server := newFlags("watch")
	fs.Parse(args)

	sse := client.NewSSEClient(*server, logging.Named("sse"))
	events, errs := sse.Subscribe(ctx)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Printf("%-6s %s (revision %d)\n", ev.Type, ev.Path, ev.Revision)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.Warn("event stream error", zap.Error(err))
		}
	}
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
