// Package core provides the azresponses client and types for the Azure
// OpenAI and OpenAI Responses API.
//
// # Client and Transport
//
// The primary entry point is [Client]. It receives its [Transport], cache
// and [ErrorClassifier] as constructor options so each can be substituted
// in tests:
//
//	provider := azure.New(endpoint, apiKey)
//	client := core.NewClient(provider,
//	    core.WithDefaultModel("gpt-4o"),
//	    core.WithCache(cache.New[*core.Envelope[*core.Response]](cache.Options{MaxEntries: 256})),
//	    core.WithRetryPolicy(core.DefaultRetryPolicy()),
//	    core.WithLogger(slog.Default()),
//	)
//
// # ResponseBuilder
//
// [ResponseBuilder] provides a fluent API for constructing requests:
//
//	env, err := client.Responses("gpt-4o").
//	    Instructions("You are a helpful assistant.").
//	    User("Hello!").
//	    Temperature(0.7).
//	    GetResponse(ctx)
//	fmt.Println(env.Payload.Text(), env.Metadata.RequestID)
//
// ResponseBuilder is NOT thread-safe.
//
// # Content model
//
// Message content is a sequence of [ContentPart] values discriminated by
// their "type" tag. Decoding reads the tag before any other field and
// rejects unknown tags with a [DecodeError] of kind DecodeUnsupportedType.
// Open-ended payloads such as tool parameters and function call arguments
// use the dynamic [Value] type.
//
// # Streaming
//
// [Client.Stream] returns a [ResponseStream] with three channels:
//   - Ch: decoded events in server order, each a [Chunk] with a running
//     sequence number; the last one has IsComplete set
//   - Err: at most one error
//   - Final: the response envelope
//
// When a streamed event carries function call content, the client abandons
// the stream and re-issues the identical request without streaming. The
// non-streaming response is delivered on Final and [ResponseStream.FellBack]
// reports true. Use [DrainStream] or [CollectText] to consume a stream.
//
// # Errors
//
// Every failure is an [*Error] whose [Kind] maps to a [Category]. Use
// errors.Is with the category sentinels:
//
//	if errors.Is(err, core.ErrRateLimited) {
//	    // back off
//	}
//
// Two errors of the same kind compare equal through errors.Is when their
// payloads match. Cancellation is reported as context.Canceled; an exceeded
// deadline becomes a timeout error.
package core
