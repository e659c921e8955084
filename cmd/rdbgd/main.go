// Command rdbgd is a standalone harness for manually exercising the GDB and
// QMP servers against an in-memory facade.Fake. It is not how the real
// emulator wires the core into production — that embeds the rdbg package
// directly — but it drives the full server lifecycle from the outside the
// way lxd-benchmark drives LXD's API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lokkju/dosbox-x/config"
	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbg"
	"github.com/lokkju/dosbox-x/rdbglog"
	"github.com/lokkju/dosbox-x/rsp"
)

type serveFlags struct {
	gdbPort    int64
	gdbBind    string
	gdbEnabled bool
	qmpPort    int64
	qmpBind    string
	qmpEnabled bool
	adminPort  int64
	adminBind  string
	adminOn    bool
	debug      bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rdbgd",
		Short: "Standalone harness for the remote-debugging server core",
		Long: `rdbgd runs the GDB and QMP servers against an in-memory fake
emulator facade, for manual protocol testing with a real gdb or qmp client
without a full x86 emulator attached.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GDB/QMP servers against a fake emulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&flags.gdbPort, "gdb-port", 2159, "GDB RSP listen port")
	f.StringVar(&flags.gdbBind, "gdb-bind", "127.0.0.1", "GDB RSP bind address")
	f.BoolVar(&flags.gdbEnabled, "gdb-enabled", true, "enable the GDB server")
	f.Int64Var(&flags.qmpPort, "qmp-port", 4444, "QMP listen port")
	f.StringVar(&flags.qmpBind, "qmp-bind", "127.0.0.1", "QMP bind address")
	f.BoolVar(&flags.qmpEnabled, "qmp-enabled", true, "enable the QMP server")
	f.Int64Var(&flags.adminPort, "admin-port", 2160, "admin status/events listen port")
	f.StringVar(&flags.adminBind, "admin-bind", "127.0.0.1", "admin bind address")
	f.BoolVar(&flags.adminOn, "admin-enabled", true, "enable the admin status/events endpoint")
	f.BoolVar(&flags.debug, "debug", false, "enable debug logging")

	return cmd
}

func runServe(ctx context.Context, flags *serveFlags) error {
	log := rdbglog.New()
	if flags.debug {
		log.SetLevel(logrus.DebugLevel)
	}

	values := map[string]string{
		"gdb.enabled":   boolStr(flags.gdbEnabled),
		"gdb.port":      fmt.Sprintf("%d", flags.gdbPort),
		"gdb.bind":      flags.gdbBind,
		"qmp.enabled":   boolStr(flags.qmpEnabled),
		"qmp.port":      fmt.Sprintf("%d", flags.qmpPort),
		"qmp.bind":      flags.qmpBind,
		"admin.enabled": boolStr(flags.adminOn),
		"admin.port":    fmt.Sprintf("%d", flags.adminPort),
		"admin.bind":    flags.adminBind,
	}

	cfg, err := config.Load(config.DebugServerSchema(), values)
	if err != nil {
		return fmt.Errorf("rdbgd: invalid configuration: %w", err)
	}

	f := facade.NewFake()
	f.RequestResume()

	handle := rdbg.New(cfg, f, log)

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := handle.Start(runCtx); err != nil {
		return fmt.Errorf("rdbgd: starting servers: %w", err)
	}

	go driveExecution(runCtx, handle, f)

	log.Info("rdbgd serving", logrus.Fields{
		"gdb_port": flags.gdbPort, "qmp_port": flags.qmpPort, "admin_port": flags.adminPort,
	})

	<-runCtx.Done()
	log.Info("rdbgd shutting down", nil)

	return handle.Stop()
}

// driveExecution stands in for the real emulator's instruction executor: it
// polls the GDB session between (simulated) instructions and reports each
// stop, the way the production CPU loop calls Poll/ReportStop around a real
// interpreter. Without this, a real gdb client's "s"/"c" commands would
// queue an action that nothing ever carries out.
func driveExecution(ctx context.Context, h *rdbg.Handle, f *facade.Fake) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		switch h.Poll() {
		case rsp.ActionStep:
			f.StepInstruction()
			h.ReportStop(5)

		case rsp.ActionContinue:
			runContinue(ctx, h, f)

		case rsp.ActionHalt:
			h.ReportStop(5)
		}
	}
}

// runContinue steps the fake CPU until it hits a breakpoint or the session
// surfaces a 0x03 interrupt as ActionHalt, then reports exactly one stop.
func runContinue(ctx context.Context, h *rdbg.Handle, f *facade.Fake) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if f.StepInstruction() {
			h.ReportStop(5)
			return
		}

		if h.Poll() == rsp.ActionHalt {
			h.ReportStop(5)
			return
		}

		time.Sleep(time.Millisecond)
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
