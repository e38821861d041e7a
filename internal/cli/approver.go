package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rxtech-lab/auditsmart/internal/wallet"
)

// terminalApprover asks on the terminal before connecting the wallet or
// signing. Anything but y or yes rejects, and so does closed input.
func terminalApprover(in io.Reader, out io.Writer) wallet.Approver {
	var (
		mu    sync.Mutex
		once  sync.Once
		lines = make(chan string)
	)
	readLines := func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}

	return func(ctx context.Context, req wallet.ApprovalRequest) bool {
		mu.Lock()
		defer mu.Unlock()
		once.Do(func() { go readLines() })

		fmt.Fprintf(out, "%s [y/N]: ", describeApproval(req))

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			return answer == "y" || answer == "yes"
		}
	}
}

func describeApproval(req wallet.ApprovalRequest) string {
	switch {
	case req.Kind == wallet.ApprovalConnect:
		return fmt.Sprintf("Connect wallet %s?", req.Account.Hex())
	case req.Intent != nil && req.Intent.To == "":
		return fmt.Sprintf("Sign contract deployment from %s (gas limit %d)?", req.Account.Hex(), req.Intent.GasLimit)
	case req.Intent != nil:
		return fmt.Sprintf("Sign transaction from %s to %s (gas limit %d)?", req.Account.Hex(), req.Intent.To, req.Intent.GasLimit)
	default:
		return fmt.Sprintf("Sign transaction from %s?", req.Account.Hex())
	}
}
