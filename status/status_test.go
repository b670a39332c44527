package status

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitWritesIndentedLines(t *testing.T) {
	sc := NewStatusConsumer()
	sc.Emit("root line")
	sc.Join()
	assert.Equal(t, "root line\n", sc.Wait())
}

func TestForkIndentsChildLinesAndWaitsForJoin(t *testing.T) {
	sc := NewStatusConsumer()
	sc.Emit("root")
	child := sc.Fork()
	go func() {
		child.Emit("child")
		child.Join()
	}()
	sc.Join()

	out := sc.Wait()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "root", lines[0])
	assert.Equal(t, "  child", lines[1])
}

func TestNestedForksAllJoinBeforeWaitReturns(t *testing.T) {
	sc := NewStatusConsumer()
	a := sc.Fork()
	b := sc.Fork()
	sc.Join()

	done := make(chan struct{})
	go func() {
		a.Emit("a")
		a.Join()
		b.Emit("b")
		b.Join()
		close(done)
	}()
	<-done

	out := sc.Wait()
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "b")
}
