// Package pipeline is the composition root for one processing unit.
//
// ProcessUnit takes a merged record table and runs it through statistics
// (L2), grid sizing and instance assignment (L3), tile selection, and
// annotated export (L4). Every run layout funnels into this one function;
// deciding which files make up a unit is the dispatcher's job.
//
// Layer packages never import pipeline/. Optional sinks (diagnostic
// reports) are injected as interfaces.
package pipeline
