package patch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/adapter"
	"github.com/weft-ml/weft/internal/checkpoint"
	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/internal/patch"
	"github.com/weft-ml/weft/internal/tensor"
)

func mustTensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(data, shape)
	require.NoError(t, err)
	return raw
}

// testNetwork builds root -> "down_blocks" -> {"to_q", "to_k"} with identity
// 2x2 linear leaves. The container name contains an underscore on purpose:
// flat keys must re-join split parts to resolve it.
func testNetwork(t *testing.T) (*network.Container, *network.Linear, *network.Linear) {
	t.Helper()
	identity := []float32{1, 0, 0, 1}
	toQ := network.NewLinear(mustTensor(t, identity, tensor.Shape{2, 2}), nil)
	toK := network.NewLinear(mustTensor(t, identity, tensor.Shape{2, 2}), nil)
	root := network.NewContainer().Add("down_blocks",
		network.NewContainer().Add("to_q", toQ).Add("to_k", toK))
	return root, toQ, toK
}

// identityAdapter builds a single-layer set whose delta is the 2x2 identity.
func identityAdapter(t *testing.T, key string) *adapter.Set {
	t.Helper()
	sd := checkpoint.StateDict{
		key + ".lora_up.weight":   mustTensor(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2}),
		key + ".lora_down.weight": mustTensor(t, []float32{1, 0, 0, 1}, tensor.Shape{2, 2}),
	}
	set, err := adapter.FromStateDict("test", sd, tensor.CPU, tensor.Float32)
	require.NoError(t, err)
	return set
}

func TestResolveKeyJoinsUnderscoreNames(t *testing.T) {
	root, toQ, _ := testNetwork(t)

	module, path, err := patch.ResolveKey(root, "lora_unet_down_blocks_to_q", patch.PrefixUNet)
	require.NoError(t, err)
	assert.Equal(t, "down_blocks.to_q", path)
	assert.Same(t, toQ, module)
}

func TestResolveKeyWrongPrefix(t *testing.T) {
	root, _, _ := testNetwork(t)

	_, _, err := patch.ResolveKey(root, "lora_te_down_blocks_to_q", patch.PrefixUNet)
	var kerr *patch.KeyFormatError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "lora_te_down_blocks_to_q", kerr.Key)
	assert.Equal(t, patch.PrefixUNet, kerr.Prefix)
}

func TestResolveKeyBarePrefix(t *testing.T) {
	root, _, _ := testNetwork(t)

	_, _, err := patch.ResolveKey(root, "lora_unet_", patch.PrefixUNet)
	var merr *patch.ModuleResolutionError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "lora_unet_", merr.Key)
	assert.Empty(t, merr.Name)
}

func TestResolveKeyUnknownModule(t *testing.T) {
	root, _, _ := testNetwork(t)

	_, _, err := patch.ResolveKey(root, "lora_unet_down_blocks_to_v", patch.PrefixUNet)
	var merr *patch.ModuleResolutionError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "down_blocks", merr.Path)
	assert.Equal(t, "to_v", merr.Name)
}

func TestSessionPatchesAndTearsDown(t *testing.T) {
	root, toQ, toK := testNetwork(t)
	set := identityAdapter(t, "lora_unet_down_blocks_to_q")

	input := mustTensor(t, []float32{3, -1}, tensor.Shape{1, 2})

	session := patch.NewSession()
	err := session.ApplyUNet(root, []patch.Weighted{{Set: set, Weight: 0.5}}, func() error {
		out, err := toQ.Forward(input)
		require.NoError(t, err)
		// identity weight plus 0.5 * identity delta
		assert.Equal(t, []float32{4.5, -1.5}, out.AsFloat32())

		// The sibling leaf is untouched.
		out, err = toK.Forward(input)
		require.NoError(t, err)
		assert.Equal(t, []float32{3, -1}, out.AsFloat32())
		return nil
	})
	require.NoError(t, err)

	// Hooks are gone: the patched module is back to its original output.
	out, err := toQ.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, -1}, out.AsFloat32())
}

func TestSessionSkipsOtherPrefixes(t *testing.T) {
	root, toQ, _ := testNetwork(t)

	// One checkpoint, two networks: ApplyUNet must patch the unet layer and
	// pass over the text encoder layer without resolving it.
	identity := []float32{1, 0, 0, 1}
	sd := checkpoint.StateDict{
		"lora_unet_down_blocks_to_q.lora_up.weight":   mustTensor(t, identity, tensor.Shape{2, 2}),
		"lora_unet_down_blocks_to_q.lora_down.weight": mustTensor(t, identity, tensor.Shape{2, 2}),
		"lora_te_text_model_final.lora_up.weight":     mustTensor(t, identity, tensor.Shape{2, 2}),
		"lora_te_text_model_final.lora_down.weight":   mustTensor(t, identity, tensor.Shape{2, 2}),
	}
	set, err := adapter.FromStateDict("mixed", sd, tensor.CPU, tensor.Float32)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	input := mustTensor(t, []float32{3, -1}, tensor.Shape{1, 2})

	session := patch.NewSession()
	err = session.ApplyUNet(root, []patch.Weighted{{Set: set, Weight: 1}}, func() error {
		out, err := toQ.Forward(input)
		require.NoError(t, err)
		assert.Equal(t, []float32{6, -2}, out.AsFloat32())
		return nil
	})
	require.NoError(t, err)
}

func TestSessionTearsDownOnError(t *testing.T) {
	root, toQ, _ := testNetwork(t)
	set := identityAdapter(t, "lora_unet_down_blocks_to_q")

	boom := errors.New("boom")
	session := patch.NewSession()
	err := session.ApplyUNet(root, []patch.Weighted{{Set: set, Weight: 1}}, func() error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	input := mustTensor(t, []float32{1, 2}, tensor.Shape{1, 2})
	out, err := toQ.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out.AsFloat32())
}

func TestSessionResolutionFailureLeavesNothingInstalled(t *testing.T) {
	root, toQ, _ := testNetwork(t)
	good := identityAdapter(t, "lora_unet_down_blocks_to_q")
	bad := identityAdapter(t, "lora_unet_down_blocks_to_v")

	ran := false
	session := patch.NewSession()
	err := session.ApplyUNet(root, []patch.Weighted{{Set: good, Weight: 1}, {Set: bad, Weight: 1}}, func() error {
		ran = true
		return nil
	})
	var merr *patch.ModuleResolutionError
	require.ErrorAs(t, err, &merr)
	assert.False(t, ran, "callback must not run when resolution fails")

	input := mustTensor(t, []float32{1, 2}, tensor.Shape{1, 2})
	out, err := toQ.Forward(input)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out.AsFloat32())
}

func TestSessionAccumulatesAdapters(t *testing.T) {
	root, toQ, _ := testNetwork(t)
	first := identityAdapter(t, "lora_unet_down_blocks_to_q")
	second := identityAdapter(t, "lora_unet_down_blocks_to_q")

	input := mustTensor(t, []float32{2, 4}, tensor.Shape{1, 2})

	session := patch.NewSession()
	err := session.ApplyUNet(root, []patch.Weighted{
		{Set: first, Weight: 1},
		{Set: second, Weight: 0.25},
	}, func() error {
		out, err := toQ.Forward(input)
		require.NoError(t, err)
		// identity + 1.0 * identity + 0.25 * identity
		assert.Equal(t, []float32{4.5, 9}, out.AsFloat32())
		return nil
	})
	require.NoError(t, err)
}

func TestSessionArmedAndReusable(t *testing.T) {
	root, _, _ := testNetwork(t)
	set := identityAdapter(t, "lora_unet_down_blocks_to_q")
	adapters := []patch.Weighted{{Set: set, Weight: 1}}

	session := patch.NewSession()
	err := session.ApplyUNet(root, adapters, func() error {
		return session.ApplyUNet(root, adapters, func() error { return nil })
	})
	require.ErrorIs(t, err, patch.ErrSessionArmed)

	// The failed nested call must not have disarmed the finished session.
	require.NoError(t, session.ApplyUNet(root, adapters, func() error { return nil }))
}
