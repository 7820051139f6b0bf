package bedrock

import (
	"github.com/ronakrm/promptrelay/llm/httpclient"
)

// init registers the AWS EventStream decoder.
func init() {
	httpclient.RegisterDecoder("application/vnd.amazon.eventstream", NewAWSEventStreamDecoder)
}
