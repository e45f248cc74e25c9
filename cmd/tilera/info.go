package main

import (
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/tilera"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print adapter, capabilities, limits and formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, _, err := a.cfg.contextOptions()
			if err != nil {
				return err
			}
			ctx, err := tilera.NewHeadless(opts...)
			if err != nil {
				return err
			}
			defer ctx.Destroy()
			return printInfo(cmd.OutOrStdout(), ctx)
		},
	}
}

func printInfo(w io.Writer, ctx *tilera.Context) error {
	p := message.NewPrinter(language.English)
	info := ctx.AdapterInfo()
	lim := ctx.Limits()

	p.Fprintf(w, "adapter:   %s (%s)\n", info.Name, info.Type)
	p.Fprintf(w, "compiler:  %s\n", ctx.Compiler().Name())
	p.Fprintf(w, "caps:      %s\n", ctx.Caps())
	p.Fprintf(w, "limits:    texture %d, shared memory %d bytes, group threads %d\n",
		lim.MaxTextureSize, lim.MaxSharedMemory, lim.MaxComputeGroupThreads)
	p.Fprintf(w, "memory:    %s\n", ctx.Device().MemoryStats())
	p.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p.Fprintln(tw, "FORMAT\tBYTES\tTYPE\tRENDER\tFILTER\tSTORAGE\tINTEROP")
	for _, f := range tilera.Formats() {
		p.Fprintf(tw, "%s\t%d\t%s\t%t\t%t\t%t\t%s\n",
			f.Name, f.Bytes, f.CType, f.Renderable, f.LinearFilter, f.Storable, f.Interop)
	}
	return tw.Flush()
}
