package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// scrollToEndJS runs with `this` bound to the element.
const scrollToEndJS = `() => { this.scrollTop = this.scrollHeight }`

// RodDriver implements Driver on a rod page.
type RodDriver struct {
	page       *rod.Page
	navTimeout time.Duration
	closeFn    func() error
}

var _ Driver = (*RodDriver)(nil)

type rodNode struct {
	el *rod.Element
}

func (n *rodNode) String() string {
	if n == nil || n.el == nil || n.el.Object == nil {
		return "<nil>"
	}
	return n.el.Object.Description
}

func asRod(n Node) (*rod.Element, error) {
	rn, ok := n.(*rodNode)
	if !ok || rn == nil || rn.el == nil {
		return nil, fmt.Errorf("browser: foreign node %T", n)
	}
	return rn.el, nil
}

func wrapElements(els rod.Elements) []Node {
	nodes := make([]Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &rodNode{el: el})
	}
	return nodes
}

// Navigate loads url and waits for the load event.
func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()

	p := d.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return waitError(ctx, "navigate "+url, err)
	}
	return waitError(ctx, "load "+url, p.WaitLoad())
}

// first blocks until an element matching loc exists; rod retries the query
// until the page context ends.
func first(p *rod.Page, loc Locator) (*rod.Element, error) {
	if loc.Strategy == StrategyXPath {
		return p.ElementX(loc.Value)
	}
	return p.Element(loc.Value)
}

func all(p *rod.Page, loc Locator) (rod.Elements, error) {
	if loc.Strategy == StrategyXPath {
		return p.ElementsX(loc.Value)
	}
	return p.Elements(loc.Value)
}

// WaitFor returns the first element matching loc.
func (d *RodDriver) WaitFor(ctx context.Context, loc Locator, timeout time.Duration) (Node, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := first(d.page.Context(waitCtx), loc)
	if err != nil {
		return nil, waitError(ctx, "wait for "+loc.String(), err)
	}
	return &rodNode{el: el}, nil
}

// WaitForAll waits for one match, then returns all current matches.
func (d *RodDriver) WaitForAll(ctx context.Context, loc Locator, timeout time.Duration) ([]Node, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := d.page.Context(waitCtx)
	if _, err := first(p, loc); err != nil {
		return nil, waitError(ctx, "wait for all "+loc.String(), err)
	}
	els, err := all(p, loc)
	if err != nil {
		return nil, waitError(ctx, "query "+loc.String(), err)
	}
	return wrapElements(els), nil
}

// WaitClickable waits until the first match is visible and enabled.
func (d *RodDriver) WaitClickable(ctx context.Context, loc Locator, timeout time.Duration) (Node, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := first(d.page.Context(waitCtx), loc)
	if err != nil {
		return nil, waitError(ctx, "wait clickable "+loc.String(), err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, waitError(ctx, "wait visible "+loc.String(), err)
	}
	if err := el.WaitEnabled(); err != nil {
		return nil, waitError(ctx, "wait enabled "+loc.String(), err)
	}
	return &rodNode{el: el}, nil
}

// FindAll queries loc once.
func (d *RodDriver) FindAll(ctx context.Context, loc Locator) ([]Node, error) {
	els, err := all(d.page.Context(ctx), loc)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	return wrapElements(els), nil
}

// Click left-clicks n. Elements carry the context they were found with, so
// every call rebinds them to ctx.
func (d *RodDriver) Click(ctx context.Context, n Node) error {
	el, err := asRod(n)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return waitError(ctx, "click "+n.String(), err)
	}
	return nil
}

// Attribute reads the named attribute of n.
func (d *RodDriver) Attribute(ctx context.Context, n Node, name string) (string, error) {
	el, err := asRod(n)
	if err != nil {
		return "", err
	}
	v, err := el.Context(ctx).Attribute(name)
	if err != nil {
		return "", fmt.Errorf("read %s of %s: %w", name, n, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// ScrollToEnd sets scrollTop to scrollHeight on n.
func (d *RodDriver) ScrollToEnd(ctx context.Context, n Node) error {
	el, err := asRod(n)
	if err != nil {
		return err
	}
	if _, err := el.Context(ctx).Eval(scrollToEndJS); err != nil {
		return fmt.Errorf("scroll %s: %w", n, err)
	}
	return nil
}

// Close quits the browser session.
func (d *RodDriver) Close() error {
	if d.closeFn == nil {
		return nil
	}
	fn := d.closeFn
	d.closeFn = nil
	return fn()
}
