// bfqbe compiles tape-language programs to QBE IR.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"

	"github.com/chazu/bfqbe/cache"
	"github.com/chazu/bfqbe/compiler"
	"github.com/chazu/bfqbe/manifest"
	"github.com/chazu/bfqbe/server"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("bfqbe")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	showStats := flag.Bool("stats", false, "Print run statistics after compiling")
	noCache := flag.Bool("no-cache", false, "Bypass the compile cache")
	remote := flag.String("remote", "", "Compile on a bfqbe server (host:port for gRPC, http://... for Connect)")
	tapeSize := flag.Int("tape-size", 0, "Tape size in bytes (overrides bfqbe.toml)")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	serveMode := flag.Bool("serve", false, "Start compile server (Connect HTTP + gRPC)")
	servePort := flag.Int("port", 8080, "Connect HTTP port (used with -serve)")
	grpcPort := flag.Int("grpc-port", 9090, "gRPC port (used with -serve, 0 to disable)")
	lspMode := flag.Bool("lsp", false, "Start language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bfqbe [options] source destination\n\n")
		fmt.Fprintf(os.Stderr, "Compiles source to QBE IR written to destination.\n")
		fmt.Fprintf(os.Stderr, "Inside a project with a %s, destination defaults to out-dir/<source>.ssa.\n\n", manifest.FileName)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bfqbe hello.b hello.ssa          # Compile to IR\n")
		fmt.Fprintf(os.Stderr, "  bfqbe -stats hello.b hello.ssa   # Compile and show run statistics\n")
		fmt.Fprintf(os.Stderr, "  bfqbe -i                         # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  bfqbe -serve -port 8080          # Serve compile requests\n")
		fmt.Fprintf(os.Stderr, "  bfqbe -remote localhost:9090 hello.b hello.ssa\n")
		fmt.Fprintf(os.Stderr, "\nThen assemble and link with: qbe -o hello.s hello.ssa && cc -o hello hello.s\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	m, inProject, err := loadManifest(".")
	if err != nil {
		fail(err)
	}
	opts, err := buildOptions(m, *tapeSize)
	if err != nil {
		fail(err)
	}

	// Start language server if requested
	if *lspMode {
		if err := server.NewLSP(opts).Run(); err != nil {
			fail(err)
		}
		atexit.Exit(0)
	}

	var c *cache.Cache
	// the cache lives inside a project; loose files are compiled fresh
	if inProject && !*noCache && *remote == "" && m.CacheEnabled() {
		c, err = cache.Open(m.CachePath())
		if err != nil {
			// compiling without a cache is always possible
			log.Warningf("cache disabled: %s", err)
		} else {
			atexit.Register(func() { c.Close() })
		}
	}

	if *serveMode {
		srv := server.New(server.WithCache(c), server.WithOptions(opts))
		atexit.Register(srv.Stop)
		grpcAddr := ""
		if *grpcPort > 0 {
			grpcAddr = fmt.Sprintf(":%d", *grpcPort)
		}
		if err := srv.ListenAndServe(fmt.Sprintf(":%d", *servePort), grpcAddr); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			atexit.Exit(1)
		}
		atexit.Exit(0)
	}

	if *interactive {
		if err := runREPL(opts); err != nil {
			fail(err)
		}
		atexit.Exit(0)
	}

	source, dest, ok := resolvePaths(flag.Args(), m, inProject)
	if !ok {
		flag.Usage()
		atexit.Exit(1)
	}

	job := buildJob{
		source: source,
		dest:   dest,
		opts:   opts,
		cache:  c,
		remote: *remote,
	}
	result, err := job.run()
	if err != nil {
		fail(err)
	}

	if *showStats {
		if result.stats == nil {
			fmt.Fprintln(os.Stderr, "Statistics are not available for remote compiles")
		} else {
			fmt.Println(renderStats(*result.stats, result.cached))
		}
	}
	atexit.Exit(0)
}

// loadManifest finds the nearest bfqbe.toml, falling back to defaults.
// The boolean reports whether a manifest was found.
func loadManifest(dir string) (*manifest.Manifest, bool, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", manifest.FileName, err)
	}
	if m == nil {
		return manifest.Default(dir), false, nil
	}
	return m, true, nil
}

// buildOptions returns the generator options from m's [build] table with
// a non-zero -tape-size applied on top. The result is checked against the
// same schema as the manifest.
func buildOptions(m *manifest.Manifest, tapeSize int) (compiler.Options, error) {
	opts := m.Options()
	if tapeSize != 0 {
		opts.TapeSize = tapeSize
		if err := manifest.ValidateOptions(opts); err != nil {
			return compiler.Options{}, fmt.Errorf("-tape-size %d: %w", tapeSize, err)
		}
	}
	return opts.WithDefaults(), nil
}

// resolvePaths returns the source and destination named by args. A single
// source is accepted when a manifest supplies the output directory.
func resolvePaths(args []string, m *manifest.Manifest, inProject bool) (source, dest string, ok bool) {
	switch {
	case len(args) == 2:
		return args[0], args[1], true
	case len(args) == 1 && inProject:
		return args[0], m.OutputPath(args[0]), true
	}
	return "", "", false
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	atexit.Exit(1)
}
