package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
)

type WalletResponse struct {
	Available bool                `json:"available"`
	Account   string              `json:"account,omitempty"`
	Network   *wallet.NetworkInfo `json:"network,omitempty"`
}

func (s *APIServer) handleGetWallet(c *fiber.Ctx) error {
	view := s.engine.Snapshot()
	resp := WalletResponse{Available: view.WalletAvailable, Account: view.Account}
	if s.network != nil && view.WalletAvailable {
		network := s.network.GetNetworkInfo(c.UserContext())
		resp.Network = &network
	}
	return c.JSON(resp)
}

// handleConnectWallet prompts the wallet and resumes a deploy or mint that
// was waiting for it.
func (s *APIServer) handleConnectWallet(c *fiber.Ctx) error {
	if _, err := s.engine.ConnectWallet(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.engine.Snapshot())
}
