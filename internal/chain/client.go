// Package chain implements a thin gateway client for the game's smart
// contract. Transactions are serialized as "function@hexArg@hexArg..."
// call data and posted to the gateway's REST API; the engine only keeps
// the returned transaction hash.
package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
)

// Client talks to a MultiversX-style gateway. It tracks the sender nonce
// locally, refreshing from the gateway once and incrementing per send.
type Client struct {
	cfg        config.ChainConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu         sync.Mutex
	nonce      uint64
	nonceKnown bool
}

func NewClient(cfg config.ChainConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// CreateGameSession records a new session on the contract.
func (c *Client) CreateGameSession(ctx context.Context, creatorWallet string, gameType domain.GameType, maxPlayers int, entryFee string) (string, error) {
	data := callData("createGameSession",
		hexString(creatorWallet),
		hexString(string(gameType)),
		hexUint(uint64(maxPlayers)),
		hexString(entryFee),
	)
	return c.send(ctx, data, "0")
}

// JoinGameSession records a player joining; the entry fee travels as the
// transaction value.
func (c *Client) JoinGameSession(ctx context.Context, wallet, sessionID, entryFee string) (string, error) {
	data := callData("joinGameSession",
		hexString(wallet),
		hexString(sessionID),
	)
	value := entryFee
	if value == "" {
		value = "0"
	}
	return c.send(ctx, data, value)
}

// SubmitGameScore records a player's final score for a session.
func (c *Client) SubmitGameScore(ctx context.Context, wallet, sessionID string, score int64) (string, error) {
	data := callData("submitGameScore",
		hexString(wallet),
		hexString(sessionID),
		hexUint(uint64(score)),
	)
	return c.send(ctx, data, "0")
}

// MintNFTReward mints an achievement NFT for the winner.
func (c *Client) MintNFTReward(ctx context.Context, wallet string, gameType domain.GameType, achievement, metadataURI string) (string, error) {
	data := callData("mintNFTReward",
		hexString(wallet),
		hexString(string(gameType)),
		hexString(achievement),
		hexString(metadataURI),
	)
	return c.send(ctx, data, "0")
}

type transaction struct {
	Nonce    uint64 `json:"nonce"`
	Value    string `json:"value"`
	Receiver string `json:"receiver"`
	Sender   string `json:"sender"`
	GasPrice uint64 `json:"gasPrice"`
	GasLimit uint64 `json:"gasLimit"`
	Data     string `json:"data"`
	ChainID  string `json:"chainID"`
	Version  int    `json:"version"`
}

type gatewayResponse struct {
	Data struct {
		TxHash string `json:"txHash"`
		Nonce  uint64 `json:"nonce"`
	} `json:"data"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// send posts the transaction to the gateway and returns its hash.
func (c *Client) send(ctx context.Context, data, value string) (string, error) {
	nonce, err := c.nextNonce(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving sender nonce: %w", err)
	}

	tx := transaction{
		Nonce:    nonce,
		Value:    value,
		Receiver: c.cfg.ContractAddress,
		Sender:   c.cfg.SenderAddress,
		GasPrice: c.cfg.GasPrice,
		GasLimit: c.cfg.GasLimit,
		Data:     base64.StdEncoding.EncodeToString([]byte(data)),
		ChainID:  c.cfg.ChainID,
		Version:  1,
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("encoding transaction: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.GatewayURL, "/") + "/transaction/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending transaction: %w", err)
	}
	defer resp.Body.Close()

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return "", fmt.Errorf("gateway rejected transaction: status=%d error=%q", resp.StatusCode, out.Error)
	}

	c.logger.Debug("transaction sent",
		"tx_hash", out.Data.TxHash,
		"nonce", nonce,
		"duration", time.Since(start),
	)
	return out.Data.TxHash, nil
}

// nextNonce returns the nonce to use for the next transaction, fetching
// the on-chain account nonce on first use.
func (c *Client) nextNonce(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nonceKnown {
		nonce, err := c.fetchNonce(ctx)
		if err != nil {
			return 0, err
		}
		c.nonce = nonce
		c.nonceKnown = true
	}

	n := c.nonce
	c.nonce++
	return n, nil
}

func (c *Client) fetchNonce(ctx context.Context) (uint64, error) {
	url := fmt.Sprintf("%s/address/%s/nonce",
		strings.TrimSuffix(c.cfg.GatewayURL, "/"), c.cfg.SenderAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building nonce request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching nonce: %w", err)
	}
	defer resp.Body.Close()

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding nonce response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return 0, fmt.Errorf("gateway nonce lookup failed: status=%d error=%q", resp.StatusCode, out.Error)
	}
	return out.Data.Nonce, nil
}

func callData(fn string, hexArgs ...string) string {
	parts := append([]string{fn}, hexArgs...)
	return strings.Join(parts, "@")
}

func hexString(s string) string {
	return hex.EncodeToString([]byte(s))
}

// hexUint encodes an integer as the even-length big-endian hex the
// contract ABI expects.
func hexUint(v uint64) string {
	s := fmt.Sprintf("%x", v)
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return s
}
