package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/zwasm/zwasm"
	"github.com/zwasm/zwasm/internal/compilationcache"
	"github.com/zwasm/zwasm/internal/wasm"
	"github.com/zwasm/zwasm/internal/wasmdebug"
)

type runFlags struct {
	invoke     string
	batch      bool
	links      []string
	dirs       []string
	envs       []string
	profile    bool
	allowRead  bool
	allowWrite bool
	allowEnv   bool
	allowPath  bool
	allowFD    bool
	allowAll   bool
	maxMemory  string
	fuel       uint64
	trace      string
	cacheDir   string
}

func newRunCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run FILE.wasm [ARGS...]",
		Short: "Instantiate and invoke a Wasm module",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRun(cmd, f, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.invoke, "invoke", "_start", "exported function to call")
	flags.BoolVar(&f.batch, "batch", false, "read invoke requests from stdin (spec.md §6 batch protocol)")
	flags.StringArrayVar(&f.links, "link", nil, "NAME=PATH additional modules to instantiate and link")
	flags.StringArrayVar(&f.dirs, "dir", nil, "directories to grant path access to (accepted but unused)")
	flags.StringArrayVar(&f.envs, "env", nil, "K=V environment entries visible to the guest")
	flags.BoolVar(&f.profile, "profile", false, "count opcode executions; disables JIT promotion")
	flags.BoolVar(&f.allowRead, "allow-read", false, "permit WASI read-style calls")
	flags.BoolVar(&f.allowWrite, "allow-write", false, "permit WASI write-style calls")
	flags.BoolVar(&f.allowEnv, "allow-env", false, "permit WASI environ_get/environ_sizes_get")
	flags.BoolVar(&f.allowPath, "allow-path", false, "permit WASI path_open")
	flags.BoolVar(&f.allowFD, "allow-fd", false, "permit WASI fd_* calls")
	flags.BoolVar(&f.allowAll, "allow-all", false, "permit every WASI capability")
	flags.StringVar(&f.maxMemory, "max-memory", "", "cap memory.grow (e.g. 256MiB); default is the wasm32 4GiB ceiling")
	flags.Uint64Var(&f.fuel, "fuel", 0, "instruction budget; 0 disables metering")
	flags.StringVar(&f.trace, "trace", "", "comma-separated trace categories")
	flags.StringVar(&f.cacheDir, "cache-dir", "", "skip re-validating a binary already seen at this path")
	return cmd
}

func doRun(cmd *cobra.Command, f runFlags, args []string) error {
	path := args[0]
	bin, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cfg := zwasm.NewRuntimeConfig()
	if f.fuel > 0 {
		cfg = cfg.WithFuel(f.fuel)
	}
	if f.maxMemory != "" {
		bytesN, perr := units.RAMInBytes(f.maxMemory)
		if perr != nil {
			return fmt.Errorf("--max-memory: %w", perr)
		}
		cfg = cfg.WithMaxMemoryPages(uint32(uint64(bytesN) / uint64(wasm.MemoryPageSize)))
	}
	if f.profile {
		cfg = cfg.WithProfiler(&wasm.Profile{OpCounts: map[uint16]uint64{}})
	}
	if f.trace != "" {
		cfg = cfg.WithTrace(&wasm.TraceConfig{Categories: strings.Split(f.trace, ",")})
	}
	if f.cacheDir != "" {
		ctx := context.WithValue(context.Background(), compilationcache.FileCachePathKey{}, f.cacheDir)
		if cache := compilationcache.NewFileCache(ctx); cache != nil {
			cfg = cfg.WithCompilationCache(cache)
		}
	}

	rt := zwasm.NewRuntime(cfg)
	compiled, cerr := rt.CompileModule(bin)
	if cerr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), wasmdebug.FormatError(path, asWasmError(cerr)))
		os.Exit(1)
	}

	caps := wasm.Capabilities{
		AllowRead: f.allowRead || f.allowAll, AllowWrite: f.allowWrite || f.allowAll,
		AllowEnv: f.allowEnv || f.allowAll, AllowPath: f.allowPath || f.allowAll,
		AllowFD: f.allowFD || f.allowAll,
	}

	wasiArgv := append([]string{path}, args[1:]...)
	if _, werr := rt.RegisterWASI(wasiArgv, f.envs); werr != nil {
		return werr
	}

	for _, link := range f.links {
		parts := strings.SplitN(link, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("--link %q: expected NAME=PATH", link)
		}
		linkBin, lerr := os.ReadFile(parts[1])
		if lerr != nil {
			return lerr
		}
		linkCompiled, lcerr := rt.CompileModule(linkBin)
		if lcerr != nil {
			return lcerr
		}
		if _, ierr := rt.InstantiateModule(linkCompiled, zwasm.ModuleConfig{Name: parts[0], Capabilities: caps}); ierr != nil {
			return ierr
		}
	}

	mod, ierr := rt.InstantiateModule(compiled, zwasm.ModuleConfig{Capabilities: caps})
	if ierr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), wasmdebug.FormatError(path, asWasmError(ierr)))
		os.Exit(1)
	}

	if f.batch {
		return runBatch(cmd, mod)
	}

	fn := mod.ExportedFunction(f.invoke)
	if fn == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: no such export\n", f.invoke)
		os.Exit(1)
	}
	invokeArgs, aerr := parseInvokeArgs(args[1:])
	if aerr != nil {
		return aerr
	}
	results, cerr2 := fn.Call(invokeArgs)
	if cerr2 != nil {
		werr := asWasmError(cerr2)
		if werr.Kind == wasm.ErrTrap {
			os.Exit(1) // proc_exit already recorded its own exit code on the Instance
		}
		fmt.Fprintln(cmd.ErrOrStderr(), wasmdebug.FormatError(f.invoke, werr))
		os.Exit(1)
	}
	for _, r := range results {
		fmt.Fprintln(cmd.OutOrStdout(), r)
	}
	return nil
}

func parseInvokeArgs(raw []string) ([]uint64, error) {
	out := make([]uint64, 0, len(raw))
	for _, a := range raw {
		if strings.HasPrefix(a, "v128:") {
			// v128:lo:hi — each invoke argument is a single u64, so only lo
			// is passed; the hi part is accepted but ignored.
			parts := strings.SplitN(a, ":", 3)
			if len(parts) != 3 {
				return nil, fmt.Errorf("malformed v128 argument %q", a)
			}
			lo, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, lo)
			continue
		}
		v, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", a, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// runBatch implements spec.md §6's line-oriented batch protocol on stdin:
// invoke/invoke_on/get/get_on, one response line per request, until EOF.
func runBatch(cmd *cobra.Command, mod *zwasm.Module) error {
	scanner := bufio.NewScanner(os.Stdin)
	out := cmd.OutOrStdout()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(out, handleBatchLine(mod, line))
	}
	return scanner.Err()
}

func handleBatchLine(mod *zwasm.Module, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "error: empty request"
	}
	switch fields[0] {
	case "invoke":
		return batchInvoke(mod, fields[1:])
	case "invoke_on":
		// invoke_on MOD <len>:<name> ...; MOD addressing needs a
		// multi-Namespace lookup the Module wrapper doesn't carry a
		// reference to, so this reports the uniform protocol error rather
		// than silently invoking the wrong module.
		return "error: invoke_on requires a linked-module registry not reachable from this handle"
	case "get":
		return batchGet(mod, fields[1:])
	case "get_on":
		return "error: get_on requires a linked-module registry not reachable from this handle"
	default:
		return "error: unknown command"
	}
}

func batchInvoke(mod *zwasm.Module, fields []string) string {
	if len(fields) == 0 {
		return "error: invoke: missing function name"
	}
	name, err := decodeBatchName(fields[0])
	if err != nil {
		return "error: " + err.Error()
	}
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return "error: UnknownFunction"
	}
	args, err := parseInvokeArgs(fields[1:])
	if err != nil {
		return "error: " + err.Error()
	}
	results, cerr := fn.Call(args)
	if cerr != nil {
		return "error: " + asWasmError(cerr).Kind.String()
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = strconv.FormatUint(r, 10)
	}
	return "ok " + strings.Join(parts, " ")
}

func batchGet(mod *zwasm.Module, fields []string) string {
	if len(fields) == 0 {
		return "error: get: missing global name"
	}
	name, err := decodeBatchName(fields[0])
	if err != nil {
		return "error: " + err.Error()
	}
	v, ok := mod.ExportedGlobal(name)
	if !ok {
		return "error: UnknownGlobal"
	}
	return "ok " + strconv.FormatUint(v, 10)
}

// decodeBatchName parses the `<len>:<name>` or `hex:<hex>` forms spec.md §6
// describes.
func decodeBatchName(field string) (string, error) {
	if strings.HasPrefix(field, "hex:") {
		return decodeHexName(field[len("hex:"):])
	}
	idx := strings.IndexByte(field, ':')
	if idx < 0 {
		return "", fmt.Errorf("malformed name field %q", field)
	}
	n, err := strconv.Atoi(field[:idx])
	if err != nil {
		return "", fmt.Errorf("malformed name length in %q", field)
	}
	name := field[idx+1:]
	if len(name) != n {
		return "", fmt.Errorf("name length mismatch in %q", field)
	}
	return name, nil
}

func decodeHexName(hexStr string) (string, error) {
	if len(hexStr)%2 != 0 {
		return "", fmt.Errorf("malformed hex name %q", hexStr)
	}
	buf := make([]byte, len(hexStr)/2)
	for i := range buf {
		v, err := strconv.ParseUint(hexStr[i*2:i*2+2], 16, 8)
		if err != nil {
			return "", fmt.Errorf("malformed hex name %q", hexStr)
		}
		buf[i] = byte(v)
	}
	return string(buf), nil
}
