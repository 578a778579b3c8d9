package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skypescrape/internal/browser"
)

var (
	listLocator   = browser.CSS("[role='listitem']")
	regionLocator = browser.XPath("//div[@role='region']")
	msgLocator    = browser.XPath("//div[@role='region']")
	backLocator   = browser.CSS("[title='Retour']")
)

func testSelectors() Selectors {
	return Selectors{
		ConversationList: listLocator,
		MessageRegion:    regionLocator,
		Message:          msgLocator,
		BackButton:       backLocator,
		LabelAttribute:   "aria-label",
	}
}

type fakeNode struct {
	id      string
	label   string
	attrErr error
}

func (n *fakeNode) String() string { return n.id }

// fakeConversation scripts what FindAll returns on each call while the
// conversation is open; the last batch repeats.
type fakeConversation struct {
	node     *fakeNode
	batches  [][]*fakeNode
	clickErr error
	noRegion bool
}

// fakeDriver simulates a chat client with a conversation list, a history
// region per conversation and a back button.
type fakeDriver struct {
	conversations []*fakeConversation
	listErr       error
	backErr       error

	active  *fakeConversation
	step    int
	scrolls int
	clicks  []string
	closed  bool
}

var errNoElement = errors.New("no such element")

func (d *fakeDriver) Navigate(ctx context.Context, url string) error { return nil }

func (d *fakeDriver) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Node, error) {
	if loc == regionLocator && d.active != nil && !d.active.noRegion {
		return &fakeNode{id: "region"}, nil
	}
	return nil, fmt.Errorf("wait for %s: %w", loc, browser.ErrTimeout)
}

func (d *fakeDriver) WaitForAll(ctx context.Context, loc browser.Locator, timeout time.Duration) ([]browser.Node, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	if loc != listLocator || len(d.conversations) == 0 {
		return nil, fmt.Errorf("wait for all %s: %w", loc, browser.ErrTimeout)
	}
	nodes := make([]browser.Node, 0, len(d.conversations))
	for _, c := range d.conversations {
		nodes = append(nodes, c.node)
	}
	return nodes, nil
}

func (d *fakeDriver) WaitClickable(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Node, error) {
	if loc == backLocator && d.backErr == nil {
		return &fakeNode{id: "back"}, nil
	}
	if d.backErr != nil {
		return nil, d.backErr
	}
	return nil, errNoElement
}

func (d *fakeDriver) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Node, error) {
	if d.active == nil || len(d.active.batches) == 0 {
		return nil, nil
	}
	i := min(d.step, len(d.active.batches)-1)
	d.step++
	batch := d.active.batches[i]
	nodes := make([]browser.Node, len(batch))
	for j, n := range batch {
		nodes[j] = n
	}
	return nodes, nil
}

func (d *fakeDriver) Click(ctx context.Context, n browser.Node) error {
	fn := n.(*fakeNode)
	d.clicks = append(d.clicks, fn.id)
	if fn.id == "back" {
		d.active = nil
		return nil
	}
	for _, c := range d.conversations {
		if c.node == fn {
			if c.clickErr != nil {
				return c.clickErr
			}
			d.active = c
			d.step = 0
			return nil
		}
	}
	return errNoElement
}

func (d *fakeDriver) Attribute(ctx context.Context, n browser.Node, name string) (string, error) {
	fn := n.(*fakeNode)
	if fn.attrErr != nil {
		return "", fn.attrErr
	}
	return fn.label, nil
}

func (d *fakeDriver) ScrollToEnd(ctx context.Context, n browser.Node) error {
	d.scrolls++
	return nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

// fakeClock never blocks and reports a fixed time.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

func msgNodes(prefix string, labels ...string) []*fakeNode {
	nodes := make([]*fakeNode, len(labels))
	for i, l := range labels {
		nodes[i] = &fakeNode{id: fmt.Sprintf("%s-%d", prefix, i), label: l}
	}
	return nodes
}

func countedNodes(n int) []*fakeNode {
	nodes := make([]*fakeNode, n)
	for i := range nodes {
		nodes[i] = &fakeNode{id: fmt.Sprintf("n%d", i), label: fmt.Sprintf("User, message %d, at 10:%02d", i, i)}
	}
	return nodes
}

func conversation(id string, batches ...[]*fakeNode) *fakeConversation {
	return &fakeConversation{node: &fakeNode{id: id}, batches: batches}
}
