package bridge

import "github.com/liberland/federated-bridge/internal/types"

type originKind uint8

const (
	originSigned originKind = iota
	originRoot
)

// Origin is the authority a call is dispatched with.
type Origin struct {
	kind    originKind
	account types.AccountId
}

func Signed(account types.AccountId) Origin {
	return Origin{kind: originSigned, account: account}
}

func Root() Origin {
	return Origin{kind: originRoot}
}

func (o Origin) IsRoot() bool { return o.kind == originRoot }

// Signer returns the signing account or ErrBadOrigin for non-signed origins.
func (o Origin) Signer() (types.AccountId, error) {
	if o.kind != originSigned {
		return types.AccountId{}, ErrBadOrigin
	}
	return o.account, nil
}

// EnsureOrigin decides whether an origin carries a privileged authority.
type EnsureOrigin interface {
	Ensure(o Origin) bool
}

type EnsureRoot struct{}

func (EnsureRoot) Ensure(o Origin) bool { return o.IsRoot() }

// EnsureSignedBy accepts a single fixed account, or root.
type EnsureSignedBy struct {
	Account types.AccountId
}

func (e EnsureSignedBy) Ensure(o Origin) bool {
	if o.IsRoot() {
		return true
	}
	acc, err := o.Signer()
	return err == nil && acc == e.Account
}
