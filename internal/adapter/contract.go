package adapter

import (
	"fmt"

	"github.com/weft-ml/weft/internal/tensor"
)

// contractFactors computes the 4-index tensor contraction
//
//	out[p, r, k, l] = Σᵢⱼ t[i, j, k, l] · a[i, p] · b[j, r]
//
// which covers all three factor-rebuild patterns used by the adapter
// variants: the Hadamard "i j k l, j r, i p -> p r k l" and Kronecker
// "i j k l, i p, j r -> p r k l" rebuilds directly, and the LowRank
// convolutional mid term "m n w h, i m, n j -> i j w h" with the up factor
// transposed.
func contractFactors(t4, a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	ts, as, bs := t4.Shape(), a.Shape(), b.Shape()
	if len(ts) != 4 || len(as) != 2 || len(bs) != 2 {
		return nil, fmt.Errorf("contract: expected 4D core and 2D factors, got %v, %v, %v", ts, as, bs)
	}
	dimI, dimJ, dimK, dimL := ts[0], ts[1], ts[2], ts[3]
	if as[0] != dimI {
		return nil, fmt.Errorf("contract: factor a %v does not match core dim %d", as, dimI)
	}
	if bs[0] != dimJ {
		return nil, fmt.Errorf("contract: factor b %v does not match core dim %d", bs, dimJ)
	}
	dimP, dimR := as[1], bs[1]

	tv := t4.AsFloat32()
	av := a.AsFloat32()
	bv := b.AsFloat32()

	// Contract j first: tmp[i, r, k, l] = Σⱼ t[i, j, k, l] · b[j, r].
	spatial := dimK * dimL
	tmp := make([]float32, dimI*dimR*spatial)
	for i := 0; i < dimI; i++ {
		for j := 0; j < dimJ; j++ {
			src := tv[(i*dimJ+j)*spatial : (i*dimJ+j+1)*spatial]
			for r := 0; r < dimR; r++ {
				w := bv[j*dimR+r]
				if w == 0 {
					continue
				}
				dst := tmp[(i*dimR+r)*spatial : (i*dimR+r+1)*spatial]
				for s := range src {
					dst[s] += w * src[s]
				}
			}
		}
	}

	// Then i: out[p, r, k, l] = Σᵢ tmp[i, r, k, l] · a[i, p].
	result, err := tensor.NewRaw(tensor.Shape{dimP, dimR, dimK, dimL}, tensor.Float32, t4.Device())
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}
	out := result.AsFloat32()
	for i := 0; i < dimI; i++ {
		for p := 0; p < dimP; p++ {
			w := av[i*dimP+p]
			if w == 0 {
				continue
			}
			for r := 0; r < dimR; r++ {
				src := tmp[(i*dimR+r)*spatial : (i*dimR+r+1)*spatial]
				dst := out[(p*dimR+r)*spatial : (p*dimR+r+1)*spatial]
				for s := range src {
					dst[s] += w * src[s]
				}
			}
		}
	}
	return result, nil
}
