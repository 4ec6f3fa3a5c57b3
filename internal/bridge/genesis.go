package bridge

import (
	"github.com/liberland/federated-bridge/internal/types"
)

// Genesis is the initial state of one bridge instance.
type Genesis struct {
	Relays        []types.AccountId `json:"relays"`
	Watchers      []types.AccountId `json:"watchers"`
	VotesRequired uint32            `json:"votes_required"`
	Fee           types.Balance     `json:"fee"`
	State         BridgeState       `json:"state"`
	Admin         *types.AccountId  `json:"admin,omitempty"`
	SuperAdmin    *types.AccountId  `json:"super_admin,omitempty"`
}

func (p *Pallet) Build(store Store, g Genesis) error {
	if uint32(len(g.Relays)) > p.cfg.MaxRelays {
		return ErrTooManyRelays
	}
	if uint32(len(g.Watchers)) > p.cfg.MaxWatchers {
		return ErrTooManyWatchers
	}
	if err := store.SetRelays(g.Relays); err != nil {
		return err
	}
	if err := store.SetWatchers(g.Watchers); err != nil {
		return err
	}
	if err := store.SetVotesRequired(g.VotesRequired); err != nil {
		return err
	}
	if err := store.SetFee(g.Fee); err != nil {
		return err
	}
	if err := store.SetState(g.State); err != nil {
		return err
	}
	if g.Admin != nil {
		if err := store.SetAdmin(*g.Admin); err != nil {
			return err
		}
	}
	if g.SuperAdmin != nil {
		if err := store.SetSuperAdmin(*g.SuperAdmin); err != nil {
			return err
		}
	}
	return nil
}
