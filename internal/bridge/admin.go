package bridge

import "github.com/liberland/federated-bridge/internal/types"

func (p *Pallet) ensureAdmin(env *Env, origin Origin) error {
	caller, err := origin.Signer()
	if err != nil {
		return err
	}
	admin, err := env.Store.Admin()
	if err != nil {
		return err
	}
	superAdmin, err := env.Store.SuperAdmin()
	if err != nil {
		return err
	}
	if (admin != nil && *admin == caller) || (superAdmin != nil && *superAdmin == caller) {
		return nil
	}
	return ErrUnauthorized
}

func (p *Pallet) ensureSuperAdmin(env *Env, origin Origin) error {
	caller, err := origin.Signer()
	if err != nil {
		return err
	}
	superAdmin, err := env.Store.SuperAdmin()
	if err != nil {
		return err
	}
	if superAdmin == nil || *superAdmin != caller {
		return ErrUnauthorized
	}
	return nil
}

func (p *Pallet) SetFee(env *Env, origin Origin, amount types.Balance) error {
	if err := p.ensureAdmin(env, origin); err != nil {
		return err
	}
	return env.Store.SetFee(amount)
}

func (p *Pallet) SetVotesRequired(env *Env, origin Origin, votesRequired uint32) error {
	if err := p.ensureSuperAdmin(env, origin); err != nil {
		return err
	}
	return env.Store.SetVotesRequired(votesRequired)
}

func (p *Pallet) AddRelay(env *Env, origin Origin, relay types.AccountId) error {
	if err := p.ensureSuperAdmin(env, origin); err != nil {
		return err
	}
	relays, err := env.Store.Relays()
	if err != nil {
		return err
	}
	if contains(relays, relay) {
		return ErrAlreadyExists
	}
	if uint32(len(relays)) >= p.cfg.MaxRelays {
		return ErrTooManyRelays
	}
	return env.Store.SetRelays(append(relays, relay))
}

func (p *Pallet) RemoveRelay(env *Env, origin Origin, relay types.AccountId) error {
	if err := p.ensureAdmin(env, origin); err != nil {
		return err
	}
	relays, err := env.Store.Relays()
	if err != nil {
		return err
	}
	rest, ok := without(relays, relay)
	if !ok {
		return ErrInvalidRelay
	}
	return env.Store.SetRelays(rest)
}

func (p *Pallet) AddWatcher(env *Env, origin Origin, watcher types.AccountId) error {
	if err := p.ensureAdmin(env, origin); err != nil {
		return err
	}
	watchers, err := env.Store.Watchers()
	if err != nil {
		return err
	}
	if contains(watchers, watcher) {
		return ErrAlreadyExists
	}
	if uint32(len(watchers)) >= p.cfg.MaxWatchers {
		return ErrTooManyWatchers
	}
	return env.Store.SetWatchers(append(watchers, watcher))
}

func (p *Pallet) RemoveWatcher(env *Env, origin Origin, watcher types.AccountId) error {
	if err := p.ensureSuperAdmin(env, origin); err != nil {
		return err
	}
	watchers, err := env.Store.Watchers()
	if err != nil {
		return err
	}
	rest, ok := without(watchers, watcher)
	if !ok {
		return ErrInvalidWatcher
	}
	return env.Store.SetWatchers(rest)
}

func (p *Pallet) SetState(env *Env, origin Origin, state BridgeState) error {
	if err := p.ensureAdmin(env, origin); err != nil {
		return err
	}
	return p.setState(env, state)
}

// EmergencyStop lets any watcher halt the bridge.
func (p *Pallet) EmergencyStop(env *Env, origin Origin) error {
	caller, err := origin.Signer()
	if err != nil {
		return err
	}
	watchers, err := env.Store.Watchers()
	if err != nil {
		return err
	}
	if !contains(watchers, caller) {
		return ErrUnauthorized
	}
	if err := p.setState(env, StateStopped); err != nil {
		return err
	}
	env.deposit(EmergencyStopEvent{})
	return nil
}

func (p *Pallet) SetAdmin(env *Env, origin Origin, admin types.AccountId) error {
	if !p.cfg.ForceOrigin.Ensure(origin) {
		if err := p.ensureAdmin(env, origin); err != nil {
			return err
		}
	}
	return env.Store.SetAdmin(admin)
}

func (p *Pallet) SetSuperAdmin(env *Env, origin Origin, superAdmin types.AccountId) error {
	if !p.cfg.ForceOrigin.Ensure(origin) {
		if err := p.ensureSuperAdmin(env, origin); err != nil {
			return err
		}
	}
	return env.Store.SetSuperAdmin(superAdmin)
}

func without(list []types.AccountId, acc types.AccountId) ([]types.AccountId, bool) {
	for i, a := range list {
		if a == acc {
			rest := make([]types.AccountId, 0, len(list)-1)
			rest = append(rest, list[:i]...)
			return append(rest, list[i+1:]...), true
		}
	}
	return list, false
}
