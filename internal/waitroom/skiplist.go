package waitroom

import "math/rand"

const (
	skipMaxLevel = 32
	skipP        = 0.25
)

// skipList is an order-statistic skip list in the style of the Redis
// zskiplist: every forward pointer carries the number of nodes it jumps
// over, which makes rank lookups O(log N).  Nodes are ordered by
// (score, seq) where seq is the insertion sequence, giving a stable order
// for equal scores.
type skipList struct {
	head   *skipNode
	level  int
	length int
	rnd    *rand.Rand
}

type skipNode struct {
	key    string
	score  int64
	seq    uint64
	levels []skipLevel
}

type skipLevel struct {
	next *skipNode
	span int
}

func newSkipList(seed int64) *skipList {
	return &skipList{
		head:  &skipNode{levels: make([]skipLevel, skipMaxLevel)},
		level: 1,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

func (n *skipNode) before(score int64, seq uint64) bool {
	return n.score < score || (n.score == score && n.seq < seq)
}

func (l *skipList) randomLevel() int {
	lvl := 1
	for lvl < skipMaxLevel && l.rnd.Float64() < skipP {
		lvl++
	}
	return lvl
}

func (l *skipList) insert(key string, score int64, seq uint64) {
	var update [skipMaxLevel]*skipNode
	var rank [skipMaxLevel]int
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		if i < l.level-1 {
			rank[i] = rank[i+1]
		}
		for x.levels[i].next != nil && x.levels[i].next.before(score, seq) {
			rank[i] += x.levels[i].span
			x = x.levels[i].next
		}
		update[i] = x
	}
	lvl := l.randomLevel()
	if lvl > l.level {
		for i := l.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = l.head
			update[i].levels[i].span = l.length
		}
		l.level = lvl
	}
	n := &skipNode{key: key, score: score, seq: seq, levels: make([]skipLevel, lvl)}
	for i := 0; i < lvl; i++ {
		n.levels[i].next = update[i].levels[i].next
		update[i].levels[i].next = n
		n.levels[i].span = update[i].levels[i].span - (rank[0] - rank[i])
		update[i].levels[i].span = rank[0] - rank[i] + 1
	}
	for i := lvl; i < l.level; i++ {
		update[i].levels[i].span++
	}
	l.length++
}

// rank returns the 0-based rank of the node with (score, seq), or -1.
func (l *skipList) rank(score int64, seq uint64) int {
	r := 0
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		for x.levels[i].next != nil && !x.levels[i].next.after(score, seq) {
			r += x.levels[i].span
			x = x.levels[i].next
		}
		if x != l.head && x.score == score && x.seq == seq {
			return r - 1
		}
	}
	return -1
}

func (n *skipNode) after(score int64, seq uint64) bool {
	return n.score > score || (n.score == score && n.seq > seq)
}

func (l *skipList) delete(score int64, seq uint64) bool {
	var update [skipMaxLevel]*skipNode
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		for x.levels[i].next != nil && x.levels[i].next.before(score, seq) {
			x = x.levels[i].next
		}
		update[i] = x
	}
	x = x.levels[0].next
	if x == nil || x.score != score || x.seq != seq {
		return false
	}
	l.unlink(x, update[:l.level])
	return true
}

func (l *skipList) unlink(x *skipNode, update []*skipNode) {
	for i := 0; i < l.level; i++ {
		if update[i].levels[i].next == x {
			update[i].levels[i].span += x.levels[i].span - 1
			update[i].levels[i].next = x.levels[i].next
		} else {
			update[i].levels[i].span--
		}
	}
	for l.level > 1 && l.head.levels[l.level-1].next == nil {
		l.level--
	}
	l.length--
}

// popFront removes and returns up to n nodes from the head, in order.
func (l *skipList) popFront(n int) []*skipNode {
	out := make([]*skipNode, 0, min(n, l.length))
	var update [skipMaxLevel]*skipNode
	for len(out) < n {
		x := l.head.levels[0].next
		if x == nil {
			break
		}
		for i := 0; i < l.level; i++ {
			update[i] = l.head
		}
		l.unlink(x, update[:l.level])
		out = append(out, x)
	}
	return out
}
