package vm

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("cellvm.vm")
