package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/liberland/federated-bridge/internal/db"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TxRequest is a contract call waiting to be sent.
type TxRequest struct {
	CallId string
	Method string
	To     common.Address
	Data   []byte
	Value  *big.Int
}

type TxManagerConfig struct {
	MaxGasPrice  *big.Int
	PollInterval time.Duration
	BumpAfter    time.Duration
}

// TxManager sends queued calls one at a time from a single key, waits for
// them to be mined and bumps fees of transactions stuck in the mempool.
// Calls are journaled in eth_txs and resumed after a restart.
type TxManager struct {
	client  Client
	key     *ecdsa.PrivateKey
	from    common.Address
	relayDb *gorm.DB
	cfg     TxManagerConfig
	chainId *big.Int
	notify  chan struct{}
}

func NewTxManager(client Client, key *ecdsa.PrivateKey, dbm *db.DatabaseManager, cfg TxManagerConfig) *TxManager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.BumpAfter <= 0 {
		cfg.BumpAfter = 30 * time.Second
	}
	return &TxManager{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		relayDb: dbm.GetRelayDB(),
		cfg:     cfg,
		notify:  make(chan struct{}, 1),
	}
}

func (m *TxManager) From() common.Address {
	return m.from
}

func (m *TxManager) Balance(ctx context.Context) (*big.Int, error) {
	return m.client.BalanceAt(ctx, m.from, nil)
}

// Simulate runs req as an eth_call from the sender account.
func (m *TxManager) Simulate(ctx context.Context, req TxRequest) error {
	_, err := m.client.CallContract(ctx, goethereum.CallMsg{From: m.from, To: &req.To, Data: req.Data, Value: req.Value}, nil)
	if err != nil {
		return fmt.Errorf("simulate %s: %w", req.Method, DecodeRevert(err))
	}
	return nil
}

// Queue journals req for sending. A call id that was queued before is
// ignored. An empty call id gets a random one.
func (m *TxManager) Queue(ctx context.Context, req TxRequest) error {
	if req.CallId == "" {
		req.CallId = uuid.NewString()
	}
	value := "0"
	if req.Value != nil {
		value = req.Value.String()
	}
	row := db.EthTx{
		CallId:    req.CallId,
		Sender:    m.from.Hex(),
		To:        req.To.Hex(),
		Method:    req.Method,
		Data:      hexutil.Encode(req.Data),
		Value:     value,
		Status:    db.ETH_TX_STATUS_QUEUED,
		UpdatedAt: time.Now(),
	}
	result := m.relayDb.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		log.Debugf("Eth call %s already queued", req.CallId)
		return nil
	}
	log.WithFields(log.Fields{"call": req.CallId, "method": req.Method, "to": req.To.Hex()}).Info("Queued eth call")
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Start processes the journal until ctx is done. Provider errors end the
// loop; unfinished calls are picked up again by the next Start.
func (m *TxManager) Start(ctx context.Context) error {
	chainId, err := m.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	m.chainId = chainId
	log.Infof("Eth tx manager started, sender %s, chain %s", m.from.Hex(), chainId)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := m.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		select {
		case <-ctx.Done():
			log.Info("Eth tx manager stopping...")
			return nil
		case <-m.notify:
		case <-ticker.C:
		}
	}
}

func (m *TxManager) unfinished(ctx context.Context) ([]db.EthTx, error) {
	var rows []db.EthTx
	err := m.relayDb.WithContext(ctx).
		Where("sender = ? AND status IN ?", m.from.Hex(), []string{db.ETH_TX_STATUS_QUEUED, db.ETH_TX_STATUS_PENDING}).
		Order("id asc").Find(&rows).Error
	return rows, err
}

// ProcessPending drives every unfinished call to a final state in order.
func (m *TxManager) ProcessPending(ctx context.Context) error {
	if m.chainId == nil {
		chainId, err := m.client.ChainID(ctx)
		if err != nil {
			return err
		}
		m.chainId = chainId
	}
	rows, err := m.unfinished(ctx)
	if err != nil {
		return err
	}
	for i := range rows {
		if err := m.process(ctx, &rows[i]); err != nil {
			return fmt.Errorf("eth call %s: %w", rows[i].CallId, err)
		}
	}
	return nil
}

func (m *TxManager) process(ctx context.Context, row *db.EthTx) error {
	if row.Status == db.ETH_TX_STATUS_QUEUED {
		err := m.send(ctx, row, false)
		var revert *RevertError
		if errors.As(err, &revert) {
			log.Errorf("Eth call %s %s rejected: %v", row.CallId, row.Method, err)
			return m.finish(ctx, row, db.ETH_TX_STATUS_FAILED, err.Error())
		}
		if err != nil {
			return err
		}
	}
	return m.waitMined(ctx, row)
}

func (m *TxManager) waitMined(ctx context.Context, row *db.EthTx) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		for _, h := range strings.Split(row.TxHashes, ",") {
			if h == "" {
				continue
			}
			receipt, err := m.client.TransactionReceipt(ctx, common.HexToHash(h))
			if errors.Is(err, goethereum.NotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if receipt.Status != gethtypes.ReceiptStatusSuccessful {
				log.Errorf("Eth call %s %s reverted in tx %s", row.CallId, row.Method, h)
				return m.finish(ctx, row, db.ETH_TX_STATUS_FAILED, "reverted in "+h)
			}
			log.WithFields(log.Fields{"call": row.CallId, "method": row.Method, "tx": h, "block": receipt.BlockNumber}).Info("Eth call mined")
			return m.finish(ctx, row, db.ETH_TX_STATUS_MINED, "")
		}

		if time.Since(row.UpdatedAt) >= m.cfg.BumpAfter {
			err := m.send(ctx, row, true)
			switch {
			case IsRevert(err, "AlreadyVoted"):
				// an earlier tx of this call got in, its receipt shows up soon
				log.Debugf("Got AlreadyVoted when bumping %s", row.CallId)
			case err != nil:
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *TxManager) finish(ctx context.Context, row *db.EthTx, status, reason string) error {
	row.Status = status
	row.Error = reason
	row.UpdatedAt = time.Now()
	return m.relayDb.WithContext(ctx).Save(row).Error
}

func bigOrZero(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// bumped returns v * 1.125 + 1, the smallest replacement geth accepts with margin.
func bumped(v *big.Int) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(9))
	out.Div(out, big.NewInt(8))
	return out.Add(out, common.Big1)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) > 0 {
		return a
	}
	return b
}

// fees picks EIP-1559 fees bounded by the configured maximum.
func (m *TxManager) fees(ctx context.Context, row *db.EthTx, replace bool) (tip, feeCap *big.Int, err error) {
	tip, err = m.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}
	head, err := m.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	feeCap = new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, common.Big2))
	}
	if replace {
		tip = maxBig(tip, bumped(bigOrZero(row.GasTipCap)))
		feeCap = maxBig(feeCap, bumped(bigOrZero(row.GasFeeCap)))
	}
	if limit := m.cfg.MaxGasPrice; limit != nil && limit.Sign() > 0 {
		feeCap = minBig(feeCap, limit)
	}
	tip = minBig(tip, feeCap)
	return tip, feeCap, nil
}

func (m *TxManager) send(ctx context.Context, row *db.EthTx, replace bool) error {
	to := common.HexToAddress(row.To)
	data, err := hexutil.Decode(row.Data)
	if err != nil {
		return fmt.Errorf("corrupt call data: %w", err)
	}
	value := bigOrZero(row.Value)

	nonce := row.Nonce
	if !replace {
		if nonce, err = m.client.PendingNonceAt(ctx, m.from); err != nil {
			return err
		}
	}
	tip, feeCap, err := m.fees(ctx, row, replace)
	if err != nil {
		return err
	}
	if replace && feeCap.Cmp(bigOrZero(row.GasFeeCap)) <= 0 {
		log.Warnf("Eth call %s stuck at max gas price %s, waiting", row.CallId, feeCap)
		row.UpdatedAt = time.Now()
		return m.relayDb.WithContext(ctx).Save(row).Error
	}

	gas, err := m.client.EstimateGas(ctx, goethereum.CallMsg{From: m.from, To: &to, GasFeeCap: feeCap, GasTipCap: tip, Value: value, Data: data})
	if err != nil {
		return DecodeRevert(err)
	}
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   m.chainId,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas * 6 / 5,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(m.chainId), m.key)
	if err != nil {
		return err
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return DecodeRevert(err)
	}

	if row.TxHashes == "" {
		row.TxHashes = signed.Hash().Hex()
	} else {
		row.TxHashes += "," + signed.Hash().Hex()
	}
	row.Nonce = nonce
	row.GasTipCap = tip.String()
	row.GasFeeCap = feeCap.String()
	row.Status = db.ETH_TX_STATUS_PENDING
	row.UpdatedAt = time.Now()
	log.WithFields(log.Fields{
		"call":    row.CallId,
		"method":  row.Method,
		"tx":      signed.Hash().Hex(),
		"nonce":   nonce,
		"feeCap":  feeCap,
		"replace": replace,
	}).Info("Sent eth tx")
	return m.relayDb.WithContext(ctx).Save(row).Error
}
