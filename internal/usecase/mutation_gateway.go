package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storefront/internal/domain/model"
	"storefront/internal/notify"
	repo "storefront/internal/repository"
)

// MutationPath はカート変更がどこで適用されたか。
type MutationPath string

const (
	PathLocal         MutationPath = "local"
	PathRemote        MutationPath = "remote"
	PathDegradedLocal MutationPath = "degraded_local"
	// 対象が無い等で何もしなかった
	PathNoop MutationPath = "noop"
)

// MutationResult はカート変更の結果。呼び出し側に失敗は返さない。
type MutationResult struct {
	Cart *model.CartAggregate
	Path MutationPath
	// 縮退した原因（リモートが失敗した時のみ）
	Cause error
	// 追加・サイズ変更で残った明細ID
	LineID string
}

func (r MutationResult) Degraded() bool {
	return r.Path == PathDegradedLocal
}

// MutationGateway はカート変更の単一の入口。
// ゲストはローカル適用、認証済みはリモート適用し、失敗時はローカルへ縮退する。
// 変更後は選択の整理・スナップショット保存・件数通知まで行う。
type MutationGateway struct {
	carts     repo.CartRepository
	lookup    *ProductLookup
	storage   *CartStorage
	publisher CountPublisher
	ids       IDGenerator
	logger    *zap.Logger

	serializeLines bool
}

func NewMutationGateway(
	carts repo.CartRepository,
	lookup *ProductLookup,
	storage *CartStorage,
	publisher CountPublisher,
	ids IDGenerator,
	logger *zap.Logger,
) *MutationGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationGateway{
		carts:     carts,
		lookup:    lookup,
		storage:   storage,
		publisher: publisher,
		ids:       ids,
		logger:    logger,
	}
}

// SerializeLineMutations は同一明細への変更を直列化する（既定は後勝ち）。
func (g *MutationGateway) SerializeLineMutations(on bool) {
	g.serializeLines = on
}

func (g *MutationGateway) Add(ctx context.Context, s *CartSession, productID string, qty int, size string) MutationResult {
	qty = model.ClampQuantity(qty)
	// 新規行はキーで、既存行への加算はその明細IDでも直列化する
	defer g.lockLine(s, "add:"+productID+"\x00"+size)()
	if id := g.existingLineID(s, productID, size); id != "" {
		defer g.lockLine(s, id)()
	}

	who, mode := s.authState()
	var cause error
	if mode == model.CartModeAuthenticated {
		cart, err := g.carts.AddLine(context.WithoutCancel(ctx), who, productID, qty, size)
		if err == nil {
			res := g.commit(ctx, s, who, "add", &cart, nil, nil)
			res.LineID = lineIDFor(res.Cart, productID, size)
			return res
		}
		cause = err
	}

	summary := g.lookup.Resolve(ctx, productID)
	newID := model.LocalLineIDPrefix + g.ids.NewID()
	res := g.commit(ctx, s, who, "add", nil, cause, func(c *model.CartAggregate) {
		c.AddLine(newID, productID, qty, size, summary)
	})
	res.LineID = lineIDFor(res.Cart, productID, size)
	return res
}

func (g *MutationGateway) UpdateQuantity(ctx context.Context, s *CartSession, lineID string, qty int) MutationResult {
	qty = model.ClampQuantity(qty)
	defer g.lockLine(s, lineID)()

	line, ok := g.currentLine(s, lineID)
	if !ok || line.Quantity == qty {
		return g.noop(s)
	}

	who, mode := s.authState()
	var cause error
	if mode == model.CartModeAuthenticated {
		cart, err := g.carts.UpdateLine(context.WithoutCancel(ctx), who, lineID, repo.LinePatch{Quantity: &qty})
		if err == nil {
			return g.commit(ctx, s, who, "update_quantity", &cart, nil, nil)
		}
		cause = err
	}
	return g.commit(ctx, s, who, "update_quantity", nil, cause, func(c *model.CartAggregate) {
		c.UpdateQuantity(lineID, qty)
	})
}

// UpdateSize はサイズを変える。同じ商品・サイズの明細があれば合算する。
func (g *MutationGateway) UpdateSize(ctx context.Context, s *CartSession, lineID string, size string) MutationResult {
	defer g.lockLine(s, lineID)()

	line, ok := g.currentLine(s, lineID)
	if !ok || line.Size == size {
		return g.noop(s)
	}

	who, mode := s.authState()
	var cause error
	if mode == model.CartModeAuthenticated {
		cart, err := g.carts.UpdateLine(context.WithoutCancel(ctx), who, lineID, repo.LinePatch{Size: &size})
		if err == nil {
			res := g.commit(ctx, s, who, "update_size", &cart, nil, nil)
			res.LineID = lineIDFor(res.Cart, line.ProductID, size)
			return res
		}
		cause = err
	}

	var kept string
	res := g.commit(ctx, s, who, "update_size", nil, cause, func(c *model.CartAggregate) {
		kept = c.UpdateSize(lineID, size)
	})
	res.LineID = kept
	return res
}

func (g *MutationGateway) Remove(ctx context.Context, s *CartSession, lineID string) MutationResult {
	defer g.lockLine(s, lineID)()

	if _, ok := g.currentLine(s, lineID); !ok {
		return g.noop(s)
	}

	who, mode := s.authState()
	var cause error
	if mode == model.CartModeAuthenticated {
		cart, err := g.carts.DeleteLine(context.WithoutCancel(ctx), who, lineID)
		if err == nil {
			return g.commit(ctx, s, who, "remove", &cart, nil, nil)
		}
		cause = err
	}
	return g.commit(ctx, s, who, "remove", nil, cause, func(c *model.CartAggregate) {
		c.RemoveLine(lineID)
	})
}

// RemoveLines は購入済みの明細をまとめて消す。
// 一部だけリモートで失敗した場合も、指定IDはローカルで必ず消える。
func (g *MutationGateway) RemoveLines(ctx context.Context, s *CartSession, lineIDs []string) MutationResult {
	if len(lineIDs) == 0 {
		return g.noop(s)
	}

	who, mode := s.authState()
	var (
		last   *model.CartAggregate
		causes []error
	)
	if mode == model.CartModeAuthenticated {
		detached := context.WithoutCancel(ctx)
		for _, id := range lineIDs {
			cart, err := g.carts.DeleteLine(detached, who, id)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					continue
				}
				causes = append(causes, err)
				continue
			}
			last = &cart
		}
	}
	return g.commit(ctx, s, who, "remove_lines", last, errors.Join(causes...), func(c *model.CartAggregate) {
		c.RemoveLines(lineIDs)
	})
}

func (g *MutationGateway) Clear(ctx context.Context, s *CartSession) MutationResult {
	who, mode := s.authState()
	var cause error
	if mode == model.CartModeAuthenticated {
		cart, err := g.carts.Clear(context.WithoutCancel(ctx), who)
		if err == nil {
			return g.commit(ctx, s, who, "clear", &cart, nil, nil)
		}
		cause = err
	}
	return g.commit(ctx, s, who, "clear", nil, cause, func(c *model.CartAggregate) {
		c.Clear()
	})
}

// commit は変更を集約へ反映し、選択の整理・保存・件数通知を行う。
// remote が非nilならそれを正とし、cause があれば apply も重ねる。
func (g *MutationGateway) commit(
	ctx context.Context,
	s *CartSession,
	who model.Identity,
	op string,
	remote *model.CartAggregate,
	cause error,
	apply func(*model.CartAggregate),
) MutationResult {
	s.mu.Lock()

	// リモート呼び出し中にサインアウト・別ユーザーへの切替があれば結果は捨てる
	if who.UserID != s.identity.UserID {
		out := s.cart.Clone()
		now := s.identity.UserID
		s.mu.Unlock()
		// 取り込みに間に合わなかった変更は失われる
		g.logger.Warn("cart mutation discarded after identity change",
			zap.String("client_id", s.ClientID),
			zap.String("op", op),
			zap.String("from_user_id", who.UserID),
			zap.String("to_user_id", now))
		return MutationResult{Cart: out, Path: PathNoop, Cause: cause}
	}

	path := PathLocal
	switch {
	case !who.IsZero() && cause == nil:
		path = PathRemote
	case !who.IsZero():
		path = PathDegradedLocal
	}

	if remote != nil {
		next := remote.Clone()
		next.Mode = model.CartModeAuthenticated
		next.Normalize()
		s.cart = next
	}
	if (remote == nil || cause != nil) && apply != nil {
		apply(s.cart)
	}

	s.selection.Retain(s.cart)
	if err := g.storage.SaveCart(ctx, s.ClientID, s.cart, s.identity); err != nil {
		g.logger.Error("cart snapshot save failed",
			zap.String("client_id", s.ClientID), zap.String("op", op), zap.Error(err))
	}
	out := s.cart.Clone()
	s.mu.Unlock()

	if path == PathDegradedLocal {
		g.logger.Warn("cart mutation degraded to local",
			zap.String("client_id", s.ClientID),
			zap.String("user_id", who.UserID),
			zap.String("op", op),
			zap.Error(cause))
	}
	g.emit(s.ClientID, out.LineCount)

	return MutationResult{Cart: out, Path: path, Cause: cause}
}

func (g *MutationGateway) emit(clientID string, count int) {
	if g.publisher == nil {
		return
	}
	g.publisher.Publish(notify.CountEvent{ClientID: clientID, Count: count})
}

func (g *MutationGateway) noop(s *CartSession) MutationResult {
	return MutationResult{Cart: s.Cart(), Path: PathNoop}
}

func (g *MutationGateway) currentLine(s *CartSession, lineID string) (model.CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.FindLine(lineID)
}

func (g *MutationGateway) existingLineID(s *CartSession, productID string, size string) string {
	if !g.serializeLines {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lineIDFor(s.cart, productID, size)
}

func (g *MutationGateway) lockLine(s *CartSession, key string) func() {
	if !g.serializeLines {
		return func() {}
	}
	return s.lines.lock(key)
}

func lineIDFor(c *model.CartAggregate, productID string, size string) string {
	for _, l := range c.Lines {
		if l.ProductID == productID && l.Size == size {
			return l.ID
		}
	}
	return ""
}
