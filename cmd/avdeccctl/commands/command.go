package commands

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opd-ai/avdecc"
	"github.com/opd-ai/avdecc/protocol"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	targetID    protocol.UniqueIdentifier
	waitTimeout time.Duration
	repeat      int

	talkerID       protocol.UniqueIdentifier
	listenerID     protocol.UniqueIdentifier
	talkerUnique   uint16
	listenerUnique uint16

	commandType string
	payload     []byte
)

var acmpCmd = &cobra.Command{
	Use:   "acmp <message-type>",
	Short: "Send an ACMP command",
	Long: `Send an ACMP command and print the response.

The message type is a name such as connect_rx, disconnect_rx, get_rx_state,
connect_tx or get_tx_state.

Examples:
  avdeccctl acmp connect_rx --talker 0x001BC50AC1000001 --listener 0x001BC50AC1000002
  avdeccctl acmp get_rx_state --listener 0x001BC50AC1000002 --listener-unique 1`,
	Args: cobra.ExactArgs(1),
	RunE: runAcmp,
}

var aemCmd = &cobra.Command{
	Use:   "aem",
	Short: "Send an AEM command",
	Long: `Send an AEM command and print the response.

Examples:
  avdeccctl aem --target 0x001BC50AC1000001 --command-type 0x0002
  avdeccctl aem --target 0x001BC50AC1000001 --command-type 0x0004 --payload 0000000000000000`,
	Args: cobra.NoArgs,
	RunE: runAem,
}

var mvuCmd = &cobra.Command{
	Use:   "mvu",
	Short: "Send a Milan vendor-unique command",
	Long: `Send a Milan vendor-unique (MVU) command and print the response.

Examples:
  avdeccctl mvu --target 0x001BC50AC1000001 --command-type 0x0000`,
	Args: cobra.NoArgs,
	RunE: runMvu,
}

func init() {
	for _, c := range []*cobra.Command{acmpCmd, aemCmd, mvuCmd} {
		flags := c.Flags()
		flags.DurationVar(&waitTimeout, "wait", 5*time.Second, "how long to wait for responses")
		flags.IntVar(&repeat, "count", 1, "number of commands to send concurrently")
	}

	flags := acmpCmd.Flags()
	flags.Var(entityIDValue{&talkerID}, "talker", "talker entity ID")
	flags.Var(entityIDValue{&listenerID}, "listener", "listener entity ID")
	flags.Uint16Var(&talkerUnique, "talker-unique", 0, "talker stream index")
	flags.Uint16Var(&listenerUnique, "listener-unique", 0, "listener stream index")

	for _, c := range []*cobra.Command{aemCmd, mvuCmd} {
		flags := c.Flags()
		flags.Var(entityIDValue{&targetID}, "target", "target entity ID")
		flags.StringVar(&commandType, "command-type", "0", "command type, decimal or 0x-prefixed")
		flags.Var(hexBytesValue{&payload}, "payload", "command specific data as hex")
	}
}

// runConcurrently issues repeat commands through send and prints every
// response in sequence ID order.
func runConcurrently[R any](cmd *cobra.Command, send func(ctx context.Context, pi *avdecc.ProtocolInterface, seq uint16) (R, error), print func(io.Writer, R)) error {
	if repeat < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
	defer cancel()

	var mu sync.Mutex
	responses := make(map[uint16]R, repeat)
	order := make([]uint16, 0, repeat)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < repeat; i++ {
		seq := s.pi.NextSequenceID()
		order = append(order, seq)
		g.Go(func() error {
			resp, err := send(ctx, s.pi, seq)
			if err != nil {
				return fmt.Errorf("sequence %d: %w (code %d)", seq, err, avdecc.ErrorCode(err))
			}
			mu.Lock()
			responses[seq] = resp
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()

	out := cmd.OutOrStdout()
	for _, seq := range order {
		if resp, ok := responses[seq]; ok {
			print(out, resp)
		}
	}
	return err
}

func runAcmp(cmd *cobra.Command, args []string) error {
	messageType, err := protocol.ParseAcmpMessageType(args[0])
	if err != nil {
		return err
	}
	if !messageType.IsCommand() {
		return fmt.Errorf("%s is not a command", messageType)
	}

	return runConcurrently(cmd, func(ctx context.Context, pi *avdecc.ProtocolInterface, seq uint16) (*protocol.Acmpdu, error) {
		return pi.AcmpCommand(ctx, &protocol.Acmpdu{
			MessageType:        messageType,
			ControllerEntityID: cfg.Entity.ID,
			TalkerEntityID:     talkerID,
			ListenerEntityID:   listenerID,
			TalkerUniqueID:     talkerUnique,
			ListenerUniqueID:   listenerUnique,
			SequenceID:         seq,
		})
	}, printAcmp)
}

func runAem(cmd *cobra.Command, _ []string) error {
	ct, err := parseCommandType(commandType)
	if err != nil {
		return fmt.Errorf("invalid command type: %w", err)
	}

	return runConcurrently(cmd, func(ctx context.Context, pi *avdecc.ProtocolInterface, seq uint16) (*protocol.AemAecpdu, error) {
		return pi.AemAecpCommand(ctx, &protocol.AemAecpdu{
			MessageType:        protocol.AecpAemCommand,
			TargetEntityID:     targetID,
			ControllerEntityID: cfg.Entity.ID,
			SequenceID:         seq,
			CommandType:        protocol.AemCommandType(ct),
			Payload:            payload,
		})
	}, printAem)
}

func runMvu(cmd *cobra.Command, _ []string) error {
	ct, err := parseCommandType(commandType)
	if err != nil {
		return fmt.Errorf("invalid command type: %w", err)
	}

	return runConcurrently(cmd, func(ctx context.Context, pi *avdecc.ProtocolInterface, seq uint16) (*protocol.MvuAecpdu, error) {
		return pi.MvuAecpCommand(ctx, &protocol.MvuAecpdu{
			MessageType:        protocol.AecpVendorUniqueCommand,
			TargetEntityID:     targetID,
			ControllerEntityID: cfg.Entity.ID,
			SequenceID:         seq,
			CommandType:        protocol.MvuCommandType(ct),
			Payload:            payload,
		})
	}, printMvu)
}

func printAcmp(w io.Writer, p *protocol.Acmpdu) {
	fmt.Fprintf(w, "%s seq=%d status=%d talker=%s[%d] listener=%s[%d] connections=%d\n",
		p.MessageType, p.SequenceID, p.Status,
		p.TalkerEntityID, p.TalkerUniqueID, p.ListenerEntityID, p.ListenerUniqueID,
		p.ConnectionCount)
}

func printAem(w io.Writer, p *protocol.AemAecpdu) {
	fmt.Fprintf(w, "AEM_RESPONSE seq=%d status=%d target=%s command=%#04x payload=%x\n",
		p.SequenceID, p.Status, p.TargetEntityID, uint16(p.CommandType), p.Payload)
}

func printMvu(w io.Writer, p *protocol.MvuAecpdu) {
	fmt.Fprintf(w, "MVU_RESPONSE seq=%d status=%d target=%s command=%#04x payload=%x\n",
		p.SequenceID, p.Status, p.TargetEntityID, uint16(p.CommandType), p.Payload)
}
