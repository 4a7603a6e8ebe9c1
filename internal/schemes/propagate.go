package schemes

import (
	"strings"

	"github.com/imposter-project/imposter-protocol/internal/cmdline"
	"github.com/imposter-project/imposter-protocol/pkg/utils"
)

// propagate appends one switch per requested privilege class, valued by the
// schemes joined in input order, so child processes can reapply them.
func propagate(cl *cmdline.CommandLine, requested map[string]bool, schemes []string) {
	if cl == nil {
		return
	}
	value := strings.Join(schemes, ",")
	for _, name := range cmdline.SchemeSwitches {
		if requested[name] {
			cl.AppendSwitchASCII(name, value)
		}
	}
}

func parseSwitch(cl *cmdline.CommandLine, name string) []string {
	if cl == nil || !cl.HasSwitch(name) {
		return nil
	}
	return utils.SplitList(cl.GetSwitchValueASCII(name))
}
