// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pixel

// buildIntegral 在整个填充区上建立积分图，积分图比平面多一行一列
func (r *Ref) buildIntegral() {
	p := r.Planes[PlaneFull]
	w, h := p.Width+2*p.Pad, p.Height+2*p.Pad
	r.iStride = w + 1
	r.integral = make([]int32, r.iStride*(h+1))
	for y := 0; y < h; y++ {
		var row int32
		src := p.Data[y*p.Stride : y*p.Stride+w]
		prev := r.integral[y*r.iStride:]
		cur := r.integral[(y+1)*r.iStride:]
		for x, v := range src {
			row += int32(v)
			cur[x+1] = prev[x+1] + row
		}
	}
}

// BlockSum 返回左上角位于 (x, y) 的 size x size 整像素块像素和。
// 首次调用时延迟建立积分图，可并发调用。
func (r *Ref) BlockSum(x, y, size int) int {
	r.once.Do(r.buildIntegral)
	p := r.Planes[PlaneFull]
	x0, y0 := x+p.Pad, y+p.Pad
	x1, y1 := x0+size, y0+size
	s := r.integral
	return int(s[y1*r.iStride+x1] - s[y0*r.iStride+x1] - s[y1*r.iStride+x0] + s[y0*r.iStride+x0])
}
